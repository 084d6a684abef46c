package invoice

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-ocr/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		extractor   *mockExtractor
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = newMockExtractor()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, extractor, storage, &mockIDGenerator{id: "rec-1"}, &mockTimeSource{now: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)})
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if auth.Username != "" {
			req.SetBasicAuth(auth.Username, auth.Password)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	upload := func(filename, partType string, data []byte, provider string) (io.Reader, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if partType != "" {
			header.Set("Content-Type", partType)
		}
		part, err := mw.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		if provider != "" {
			Expect(mw.WriteField("provider", provider)).To(Succeed())
		}
		Expect(mw.Close()).To(Succeed())
		return &buf, mw.FormDataContentType()
	}

	Describe("GET /healthz", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should answer without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/invoices", func() {
		It("should extract the upload and return the record", func() {
			body, contentType := upload("invoice.png", "", []byte("image data"), "layout")
			resp := do("POST", "/api/invoices", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var record Record
			decode(resp, &record)
			Expect(record.ID).To(Equal("rec-1"))
			Expect(record.Outcome.Data.InvoiceNumber).To(Equal("12345678"))
			Expect(extractor.hints).To(ConsistOf("layout"))
			Expect(extractor.refs[0].MimeType).To(Equal("image/png"))
		})

		It("should keep the part's declared type", func() {
			body, contentType := upload("scan", "application/pdf", []byte("%PDF-1.7"), "")
			resp := do("POST", "/api/invoices", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(extractor.refs[0].MimeType).To(Equal("application/pdf"))
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.outcome = scanning.Outcome{Error: "all providers failed"}
			})

			It("should still return the recorded outcome", func() {
				body, contentType := upload("invoice.jpg", "", []byte("image data"), "")
				resp := do("POST", "/api/invoices", body, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var record Record
				decode(resp, &record)
				Expect(record.Outcome.Success).To(BeFalse())
				Expect(record.Outcome.Error).To(Equal("all providers failed"))
			})
		})

		When("no file is sent", func() {
			It("should return bad request", func() {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				Expect(mw.WriteField("provider", "vat")).To(Succeed())
				Expect(mw.Close()).To(Succeed())

				resp := do("POST", "/api/invoices", &buf, mw.FormDataContentType())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(Equal("No file provided"))
			})
		})

		When("storage fails", func() {
			BeforeEach(func() {
				storage.saveErr = io.ErrShortWrite
			})

			It("should return bad request with the error", func() {
				body, contentType := upload("invoice.jpg", "", []byte("image data"), "")
				resp := do("POST", "/api/invoices", body, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("POST /api/invoices/url", func() {
		It("should extract by URL", func() {
			resp := do("POST", "/api/invoices/url", strings.NewReader(`{"url":"https://example.com/i.jpg","provider":"gemini"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(extractor.refs[0].URL).To(Equal("https://example.com/i.jpg"))
			Expect(extractor.hints).To(ConsistOf("gemini"))
		})

		It("should reject malformed bodies", func() {
			resp := do("POST", "/api/invoices/url", strings.NewReader(`{`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject a missing URL", func() {
			resp := do("POST", "/api/invoices/url", strings.NewReader(`{}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/invoices", func() {
		When("records exist", func() {
			BeforeEach(func() {
				db.records["a"] = &Record{ID: "a"}
				db.records["b"] = &Record{ID: "b"}
			})

			It("should list them", func() {
				resp := do("GET", "/api/invoices", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var records []*Record
				decode(resp, &records)
				Expect(records).To(HaveLen(2))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = io.ErrUnexpectedEOF
			})

			It("should return internal server error", func() {
				resp := do("GET", "/api/invoices", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("GET /api/invoices/{id}", func() {
		BeforeEach(func() {
			db.records["a"] = &Record{ID: "a", Hint: "vat"}
		})

		It("should return the record", func() {
			resp := do("GET", "/api/invoices/a", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var record Record
			decode(resp, &record)
			Expect(record.Hint).To(Equal("vat"))
		})

		It("should return not found for unknown IDs", func() {
			resp := do("GET", "/api/invoices/zzz", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/invoices/{id}/file", func() {
		BeforeEach(func() {
			storage.files["a_invoice.png"] = []byte("png bytes")
			db.records["a"] = &Record{ID: "a", Filename: "a_invoice.png", ContentType: "image/png"}
			db.records["u"] = &Record{ID: "u", SourceURL: "https://example.com/x.png"}
		})

		It("should serve the upload", func() {
			resp := do("GET", "/api/invoices/a/file", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})

		It("should return not found for URL records", func() {
			resp := do("GET", "/api/invoices/u/file", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/invoices/{id}", func() {
		BeforeEach(func() {
			db.records["a"] = &Record{ID: "a"}
		})

		It("should delete the record", func() {
			resp := do("DELETE", "/api/invoices/a", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.records).To(BeEmpty())
		})

		It("should return not found for unknown IDs", func() {
			resp := do("DELETE", "/api/invoices/zzz", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should accept valid credentials", func() {
			resp := do("GET", "/api/invoices", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject missing credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should reject a wrong password", func() {
			auth.Password = "wrong"
			resp := do("GET", "/api/invoices", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			resp := do("OPTIONS", "/api/invoices", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
		})
	})
})
