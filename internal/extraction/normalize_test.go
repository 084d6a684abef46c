package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeDate", func() {
	DescribeTable("normalizing dates",
		func(in, want string) {
			Expect(NormalizeDate(in)).To(Equal(want))
		},
		Entry("chinese date", "2026年3月5日", "2026-03-05"),
		Entry("chinese date with OCR spacing", "2026 年 03 月 5 日", "2026-03-05"),
		Entry("canonical date", "2026-03-05", "2026-03-05"),
		Entry("unpadded dashes", "2026-3-5", "2026-03-05"),
		Entry("compact digits", "20260305", "2026-03-05"),
		Entry("slashes", "2026/3/5", "2026-03-05"),
		Entry("dots", "2026.03.05", "2026-03-05"),
		Entry("surrounding text", "开票日期 2026年12月31日", "2026-12-31"),
		Entry("unrecognized input", "not a date", "not a date"),
		Entry("empty input", "", ""),
	)

	DescribeTable("is idempotent",
		func(in string) {
			once := NormalizeDate(in)
			Expect(NormalizeDate(once)).To(Equal(once))
		},
		Entry("chinese date", "2026年3月5日"),
		Entry("compact digits", "20260305"),
		Entry("canonical date", "2026-03-05"),
		Entry("garbage", "3月"),
	)
})

var _ = Describe("CleanAmount", func() {
	DescribeTable("cleaning amounts",
		func(in, want string) {
			Expect(CleanAmount(in)).To(Equal(want))
		},
		Entry("yen with thousands separator", "¥1,234.56", "1234.56"),
		Entry("full-width glyphs", " ￥98，000.00 ", "98000.00"),
		Entry("dollar", "$12.00", "12.00"),
		Entry("bare number", "3.94", "3.94"),
		Entry("empty input", "", ""),
	)
})
