package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sanitize", func() {
	DescribeTable("cleaning recognized text",
		func(in, want string) {
			Expect(Sanitize(in)).To(Equal(want))
		},
		Entry("empty input", "", ""),
		Entry("runs of spaces and tabs", "发票  号码\t\t12345", "发票 号码 12345"),
		Entry("ideographic spaces", "合计\u3000\u3000¥3.94", "合计 ¥3.94"),
		Entry("pipe, underscore and tilde runs", "abc||~~def__ghi", "abcdefghi"),
		Entry("box glyph clusters", "名称□□：甲公司", "名称：甲公司"),
		Entry("clusters exposed by a removal", "a|□|b", "ab"),
		Entry("markdown emphasis", "**发票号码**：123", "发票号码：123"),
		Entry("replacement characters", "校验码\uFFFD\uFFFD：1", "校验码：1"),
		Entry("line padding", "  line  \r\n", "line\n"),
		Entry("long blank runs", "a\n\n\n\n\nb", "a\n\nb"),
		Entry("two blank lines are kept", "a\n\n\nb", "a\n\n\nb"),
		Entry("whitespace-only lines", "a\n  \n \t\n   \nb", "a\n\nb"),
	)

	DescribeTable("is idempotent",
		func(in string) {
			once := Sanitize(in)
			Expect(Sanitize(once)).To(Equal(once))
		},
		Entry("plain text", "发票号码：12345678"),
		Entry("noisy text", "  ~|~ 合  计 □ ¥ 3.94 |__| \n\n\n\n\n 价税合计 "),
		Entry("mixed line endings", "a\r\n\r\n\r\n\r\nb\rc"),
		Entry("markdown table", "| 项目名称 | 金额 |\n|---|---|\n| 办公用品 | 100.00 |"),
	)
})
