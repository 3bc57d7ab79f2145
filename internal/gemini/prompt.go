package gemini

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"finbot/internal/core"
	"finbot/internal/intake"
)

const (
	imagePrompt = "Analyze this image for expenses."
	audioPrompt = "Listen carefully. Split multiple items if spoken. Answer if it's a question."
)

const instructionTemplate = `You are a smart financial assistant for a Vietnamese user.
CURRENT DATE: %s (%s)

Your task is TWO-FOLD:
1. RECORD TRANSACTIONS: Extract spending or income from user input.
   - CRITICAL: The user might say multiple items. Split them.
   - Currency: "k" = 000.
   - Categories: %s.

   - EXTRACTION RULES (IMPORTANT):
     1. **description**: The main item or action (e.g., "Ăn phở", "Mua áo thun", "Tiền ăn vặt").
     2. **person**: Specific name of person involved (e.g., "Châu", "Nam", "Mẹ"). If generic like "bạn bè", ignore or keep brief.
     3. **location**: Specific place/brand (e.g., "Quán Bà Hằng", "Vinmart", "Shopee").

     Examples:
     - Input: "Cho châu 10k tiền ăn vặt"
       -> description: "Tiền ăn vặt", person: "Châu", amount: 10000
     - Input: "Ăn phở quán bà hằng với nam hết 30k"
       -> description: "Ăn phở", location: "Quán Bà Hằng", person: "Nam", amount: 30000
     - Input: "Mua rau thịt ở vinmart"
       -> description: "Mua rau thịt", location: "Vinmart"
   - date: YYYY-MM-DD. Use the current date unless the user names another day.

2. ANALYZE DATA: If user asks a question, return 'analysisAnswer'.

CONTEXT (Recent User Transactions):
%s

OUTPUT FORMAT (JSON):
{
  "transactions": [ { ... } ] OR null,
  "analysisAnswer": "String" OR null
}
`

const adviceTemplate = `Dựa trên lịch sử giao dịch:
%s

Hãy đóng vai chuyên gia tài chính và phân tích SÂU (150 từ):
1. Nhận diện thói quen dựa trên NGƯỜI (Person) và ĐỊA ĐIỂM (Location). (Ví dụ: Hay ăn với ai? Hay mua sắm ở đâu?).
2. Chỉ ra xu hướng tiêu dùng (Tăng/giảm).
3. Lời khuyên cụ thể.
4. Giọng điệu vui vẻ, tiếng Việt.
`

// systemInstruction renders the parser instruction for today and the given
// history.
func systemInstruction(today core.Date, history []core.Transaction) string {
	cats := make([]string, 0, len(core.AllCategories()))
	for _, c := range core.AllCategories() {
		cats = append(cats, strconv.Quote(string(c)))
	}
	local := fmt.Sprintf("%d/%d/%d", today.Day(), today.Month(), today.Year())
	return fmt.Sprintf(instructionTemplate, local, today.String(), strings.Join(cats, ", "), historyContext(history))
}

// historyContext renders one line per transaction:
// "- [date] description (category): amount | Với: person | Tại: location".
func historyContext(history []core.Transaction) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		var b strings.Builder
		fmt.Fprintf(&b, "- [%s] %s (%s): %d", t.Date, t.Description, t.Category, t.Amount)
		if t.Person != "" {
			b.WriteString(" | Với: " + t.Person)
		}
		if t.Location != "" {
			b.WriteString(" | Tại: " + t.Location)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func advicePrompt(history []core.Transaction) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		line := fmt.Sprintf("%s: %s (%s) - %d", t.Date, t.Description, t.Category, t.Amount)
		if t.Person != "" {
			line += " [Với: " + t.Person + "]"
		}
		if t.Location != "" {
			line += " [Tại: " + t.Location + "]"
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf(adviceTemplate, strings.Join(lines, "\n"))
}

// inputParts turns a submission into content parts. Media without text gets
// a short instruction so the model knows what to do with it.
func inputParts(in intake.Input) []*genai.Part {
	var parts []*genai.Part
	if in.Text != "" {
		parts = append(parts, &genai.Part{Text: in.Text})
	}
	if len(in.Image) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: mimeOr(in.MIMEType, "image/jpeg"),
			Data:     in.Image,
		}})
		if in.Text == "" {
			parts = append(parts, &genai.Part{Text: imagePrompt})
		}
	}
	if len(in.Audio) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: mimeOr(in.MIMEType, "audio/webm"),
			Data:     in.Audio,
		}})
		if in.Text == "" {
			parts = append(parts, &genai.Part{Text: audioPrompt})
		}
	}
	return parts
}

func mimeOr(mime, fallback string) string {
	if mime == "" {
		return fallback
	}
	return mime
}

// responseSchema mirrors intake.Result.
func responseSchema() *genai.Schema {
	nullableString := &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true)}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transactions": {
				Type:     genai.TypeArray,
				Nullable: genai.Ptr(true),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"amount":      {Type: genai.TypeNumber},
						"category":    {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
						"date":        {Type: genai.TypeString},
						"type":        {Type: genai.TypeString, Enum: []string{string(core.Expense), string(core.Income)}},
						"person":      nullableString,
						"location":    nullableString,
					},
				},
			},
			"analysisAnswer": nullableString,
		},
	}
}

// cleanModelJSON strips markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
