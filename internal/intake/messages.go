package intake

import (
	"fmt"
	"strings"

	"finbot/internal/core"
)

// Fixed replies.
const (
	MsgFallback       = "Xin lỗi, tôi chưa hiểu rõ. Bạn muốn ghi chi tiêu hay hỏi về lịch sử?"
	MsgProcessingFail = "Lỗi xử lý, vui lòng thử lại."
	MsgConnectionFail = "Lỗi kết nối AI."
	MsgAdviceFail     = "Lỗi kết nối khi phân tích."
	MsgAdviceEmpty    = "Không thể phân tích lúc này."

	MsgUserAudio = "🎤 Đã gửi ghi âm"
	MsgUserImage = "📎 Đã gửi ảnh..."

	DefaultDescription = "Chi tiêu"
)

// ConfirmationText renders the bot line for a recorded transaction.
func ConfirmationText(tx core.Transaction) string {
	var details strings.Builder
	if tx.Location != "" {
		details.WriteString(" 📍 " + tx.Location)
	}
	if tx.Person != "" {
		details.WriteString(" 👤 " + tx.Person)
	}
	return fmt.Sprintf("✅ Ghi nhận: **%s** - _%s_%s (%s)",
		core.FormatVND(tx.Amount), tx.Description, details.String(), tx.Category)
}
