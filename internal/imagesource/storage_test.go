package imagesource

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "invoice.png"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, pngBytes)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the name it was given", func() {
				Expect(savedPath).To(Equal(filename))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, filename)).To(BeAnExistingFile())
			})
		})

		When("the name tries to leave the directory", func() {
			BeforeEach(func() {
				filename = "../../escape.png"
			})

			It("should keep the file inside the storage directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, "escape.png")).To(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		var (
			filename string
			data     []byte
			err      error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(filename)
		})

		When("file exists", func() {
			BeforeEach(func() {
				filename = "invoice.png"
				_, saveErr := storage.Save(filename, []byte("test file content"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should return the file data", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("test file content"))
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				filename = "nonexistent.png"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})
	})

	Describe("Delete", func() {
		var (
			filename string
			err      error
		)

		JustBeforeEach(func() {
			err = storage.Delete(filename)
		})

		When("file exists", func() {
			BeforeEach(func() {
				filename = "invoice.png"
				_, saveErr := storage.Save(filename, []byte("test content"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should remove the file from disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, filename)).NotTo(BeAnExistingFile())
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				filename = "nonexistent.png"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})

	Describe("Resolve", func() {
		var (
			ref Ref
			img *Image
			err error
		)

		JustBeforeEach(func() {
			img, err = storage.Resolve(context.Background(), ref)
		})

		When("the file exists", func() {
			BeforeEach(func() {
				_, saveErr := storage.Save("scan.png", pngBytes)
				Expect(saveErr).NotTo(HaveOccurred())
				ref = Ref{URL: "file://scan.png"}
			})

			It("should return the bytes with a sniffed type", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(img.Data).To(Equal(pngBytes))
				Expect(img.MimeType).To(Equal("image/png"))
			})
		})

		When("the file is missing", func() {
			BeforeEach(func() {
				ref = Ref{URL: "file://missing.png"}
			})

			It("returns a fetch error", func() {
				var fetchErr *FetchError
				Expect(err).To(BeAssignableToTypeOf(fetchErr))
			})
		})
	})

	Describe("NewLocalStorage", func() {
		When("directory does not exist", func() {
			It("should create the directory", func() {
				storagePath := filepath.Join(GinkgoT().TempDir(), "invoices")
				_, err := NewLocalStorage(storagePath)
				Expect(err).NotTo(HaveOccurred())
				Expect(storagePath).To(BeADirectory())
			})
		})
	})
})
