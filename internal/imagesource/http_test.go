package imagesource

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("HTTP", func() {
	var (
		server *ghttp.Server
		source *HTTP
		ref    Ref
		img    *Image
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		source = NewHTTP(5 * time.Second)
		ref = Ref{URL: server.URL() + "/invoice.png"}
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		img, err = source.Resolve(context.Background(), ref)
	})

	When("the image downloads", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/invoice.png"),
				ghttp.RespondWith(http.StatusOK, pngBytes, http.Header{"Content-Type": {"image/PNG; charset=binary"}}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the bytes", func() {
			Expect(img.Data).To(Equal(pngBytes))
		})

		It("should normalize the content type", func() {
			Expect(img.MimeType).To(Equal("image/png"))
		})
	})

	When("the server sends a generic content type", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, jpegBytes, http.Header{"Content-Type": {"application/octet-stream"}}))
		})

		It("should sniff the type", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.MimeType).To(Equal("image/jpeg"))
		})
	})

	When("the server answers with an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "gone"))
		})

		It("returns a fetch error carrying the status", func() {
			var fetchErr *FetchError
			Expect(err).To(BeAssignableToTypeOf(fetchErr))
			Expect(err).To(MatchError(ContainSubstring("status 404")))
		})
	})

	When("the body is empty", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, ""))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("empty body")))
		})
	})

	When("the server is unreachable", func() {
		BeforeEach(func() {
			ref = Ref{URL: "http://127.0.0.1:1/invoice.png"}
		})

		It("returns a fetch error", func() {
			var fetchErr *FetchError
			Expect(err).To(BeAssignableToTypeOf(fetchErr))
		})
	})
})
