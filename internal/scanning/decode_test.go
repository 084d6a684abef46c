package scanning

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-ocr/internal/extraction"
)

var _ = Describe("Decode", func() {
	var (
		result *ProviderResult
		fields extraction.InvoiceFields
		err    error
	)

	JustBeforeEach(func() {
		fields, err = Decode(result, extraction.FreeTextKeyFields)
	})

	When("the result is structured", func() {
		BeforeEach(func() {
			result = &ProviderResult{
				Provider: "vat",
				Kind:     KindStructured,
				Fields: map[string]string{
					"invoiceDate": "2026年3月5日",
					"totalAmount": "¥1,234.56",
					"checkCode":   "12345 67890",
				},
				// text is never parsed for structured results
				Text: "发票号码：99999999",
			}
		})

		It("should only normalize the values", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields.InvoiceDate).To(Equal("2026-03-05"))
			Expect(fields.TotalAmount).To(Equal("1234.56"))
			Expect(fields.CheckCode).To(Equal("1234567890"))
			Expect(fields.InvoiceNumber).To(Equal(""))
		})
	})

	When("the result is markdown", func() {
		BeforeEach(func() {
			result = &ProviderResult{Provider: "layout", Kind: KindMarkdown, Text: "**发票号码**：12345678\n合计 ¥394.06 ¥3.94"}
		})

		It("should run the free-text extractor", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields.InvoiceNumber).To(Equal("12345678"))
			Expect(fields.TotalSum).To(Equal("394.06"))
			Expect(fields.TaxAmount).To(Equal("3.94"))
		})
	})

	When("the result is text", func() {
		BeforeEach(func() {
			result = &ProviderResult{Provider: "tesseract", Kind: KindText, Text: ""}
		})

		It("should return the empty record", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields.Empty()).To(BeTrue())
			Expect(fields.Items).NotTo(BeNil())
			Expect(fields.Confidence).To(BeZero())
		})
	})

	When("the kind is unknown", func() {
		BeforeEach(func() {
			result = &ProviderResult{Provider: "odd", Kind: "xml"}
		})

		It("returns a provider error", func() {
			var providerErr *ProviderError
			Expect(errors.As(err, &providerErr)).To(BeTrue())
			Expect(providerErr.Provider).To(Equal("odd"))
		})
	})

	When("the result is nil", func() {
		BeforeEach(func() {
			result = nil
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
