package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func itemSection(rows string) string {
	return "项目名称 规格型号 单位 数量 单价 金额 税率 税额\n" + rows + "\n合计 ¥0.00 ¥0.00"
}

var _ = Describe("ParseItems", func() {
	var (
		text  string
		items []InvoiceItem
	)

	JustBeforeEach(func() {
		items = ParseItems(text)
	})

	When("a row carries every column", func() {
		BeforeEach(func() {
			text = itemSection("办公用品 2 50.00 100.00 6% 6.00")
		})

		It("should parse one item", func() {
			Expect(items).To(HaveLen(1))
		})

		It("should assign the columns by position", func() {
			item := items[0]
			Expect(item.Name).To(Equal("办公用品"))
			Expect(item.Quantity).To(HaveValue(Equal(2.0)))
			Expect(item.UnitPrice).To(HaveValue(Equal(50.0)))
			Expect(item.Amount).To(HaveValue(Equal(100.0)))
			Expect(item.TaxRate).To(HaveValue(Equal(0.06)))
			Expect(item.TaxAmount).To(HaveValue(Equal(6.0)))
		})
	})

	When("a row carries only amount and tax", func() {
		BeforeEach(func() {
			text = itemSection("技术服务费 100.00 6.00")
		})

		It("should default quantity and unit price", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(HaveValue(Equal(100.0)))
			Expect(items[0].TaxAmount).To(HaveValue(Equal(6.0)))
			Expect(items[0].Quantity).To(HaveValue(Equal(1.0)))
			Expect(items[0].UnitPrice).To(HaveValue(Equal(100.0)))
			Expect(items[0].TaxRate).To(BeNil())
		})
	})

	When("a row has three numbers", func() {
		BeforeEach(func() {
			text = itemSection("打印纸 5 20.00 100.00")
		})

		It("should not invent a tax amount", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Quantity).To(HaveValue(Equal(5.0)))
			Expect(items[0].Amount).To(HaveValue(Equal(100.0)))
			Expect(items[0].TaxAmount).To(BeNil())
		})
	})

	When("a row has four numbers and no rate", func() {
		BeforeEach(func() {
			text = itemSection("打印纸 5 20.00 100.00 13.00")
		})

		It("should read the last one as the tax amount", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(HaveValue(Equal(100.0)))
			Expect(items[0].TaxRate).To(BeNil())
			Expect(items[0].TaxAmount).To(HaveValue(Equal(13.0)))
		})
	})

	When("the recognizer split the decimals", func() {
		BeforeEach(func() {
			text = itemSection("咨询服务 829. 25 49. 76")
		})

		It("should repair them", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(HaveValue(Equal(829.25)))
			Expect(items[0].TaxAmount).To(HaveValue(Equal(49.76)))
		})
	})

	When("amounts use thousands separators", func() {
		BeforeEach(func() {
			text = itemSection("服务器 1 12,000.00 12,000.00 13% 1,560.00")
		})

		It("should read the full numbers", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].UnitPrice).To(HaveValue(Equal(12000.0)))
			Expect(items[0].TaxRate).To(HaveValue(Equal(0.13)))
			Expect(items[0].TaxAmount).To(HaveValue(Equal(1560.0)))
		})
	})

	When("rows are noise", func() {
		BeforeEach(func() {
			text = itemSection("A 1 2 3\n短\n只有一个数 100.00\n单价 数量 金额 1 2")
		})

		It("should skip them", func() {
			Expect(items).To(BeEmpty())
		})
	})

	When("the rows come from a markdown table", func() {
		BeforeEach(func() {
			text = "| 项目名称 | 数量 | 单价 | 金额 | 税率 | 税额 |\n|---|---|---|---|---|---|\n" +
				"| 办公用品 | 2 | 50.00 | 100.00 | 6% | 6.00 |\n| 合计 | | | ¥100.00 | | ¥6.00 |"
		})

		It("should parse the row", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("办公用品"))
			Expect(items[0].TaxAmount).To(HaveValue(Equal(6.0)))
		})
	})

	When("the header is missing", func() {
		BeforeEach(func() {
			text = "办公用品 2 50.00 100.00 6% 6.00\n合计 ¥100.00 ¥6.00"
		})

		It("should return an empty list", func() {
			Expect(items).NotTo(BeNil())
			Expect(items).To(BeEmpty())
		})
	})

	When("the subtotal is missing", func() {
		BeforeEach(func() {
			text = "项目名称\n办公用品 2 50.00 100.00 6% 6.00"
		})

		It("should return an empty list", func() {
			Expect(items).To(BeEmpty())
		})
	})

	It("should be deterministic", func() {
		in := itemSection("办公用品 2 50.00 100.00 6% 6.00\n技术服务费 100.00 6.00")
		Expect(ParseItems(in)).To(Equal(ParseItems(in)))
	})
})
