package scanning

// invoiceFieldsPrompt asks a vision model for the canonical invoice fields as JSON
const invoiceFieldsPrompt = `You are reading a Chinese VAT invoice (增值税发票). Read every printed character in the image and extract the following fields:

- invoiceCode: 发票代码, 10 or 12 digits
- invoiceNumber: 发票号码
- invoiceDate: 开票日期, formatted YYYY-MM-DD
- buyerName / buyerTaxNumber: 购买方 名称 and 纳税人识别号 (or 统一社会信用代码)
- sellerName / sellerTaxNumber: 销售方 名称 and 纳税人识别号 (or 统一社会信用代码)
- totalSum: 合计 amount before tax
- taxAmount: 合计 tax
- totalAmount: 价税合计 (小写), the tax-inclusive total
- checkCode: 校验码, digits only
- items: one entry per row of the goods table with name, quantity, unitPrice, amount, taxRate (a fraction, 0.06 for 6%) and taxAmount

Return ONLY valid JSON in this exact format:
{
  "invoiceCode": "",
  "invoiceNumber": "",
  "invoiceDate": "YYYY-MM-DD",
  "buyerName": "",
  "buyerTaxNumber": "",
  "sellerName": "",
  "sellerTaxNumber": "",
  "totalSum": "0.00",
  "taxAmount": "0.00",
  "totalAmount": "0.00",
  "checkCode": "",
  "items": [{"name": "", "quantity": 1, "unitPrice": 0.00, "amount": 0.00, "taxRate": 0.06, "taxAmount": 0.00}]
}

Important:
- Amounts are strings without currency symbols or thousands separators
- If you cannot find a field, use an empty string
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// invoiceTranscribePrompt asks a vision model for a faithful transcription
const invoiceTranscribePrompt = `Transcribe this invoice image exactly as printed. Keep every label and its value on the same line (for example "发票号码：12345678"). Render the goods table as a markdown table with one row per item, keeping the header row and the 合计 row. Do not translate or correct anything and do not add commentary.`
