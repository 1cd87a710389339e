package chat

import "fmt"

// Messages shown to the child or the parent UI.
const (
	MsgNotConfigured    = "Gemini API key not configured. Please add GEMINI_API_KEY to .env file."
	MsgEmptyMessage     = "Message cannot be empty"
	MsgMissingSession   = "Session ID is required"
	MsgChildNotFound    = "Child profile not found"
	MsgNoMascotAssigned = "No mascot assigned to this child"
	MsgBePolite         = "Hãy sử dụng ngôn từ lịch sự nhé! 😊"
	MsgTryAnotherTopic  = "Xin lỗi, tôi không thể trả lời câu hỏi này. Hãy thử hỏi về chủ đề khác nhé! 😊"
	MsgInvalidAPIKey    = "Invalid API key. Please check your Gemini API configuration."
	MsgProviderQuota    = "API quota exceeded. Please try again later."
	MsgGenericError     = "Đã có lỗi xảy ra. Vui lòng thử lại sau! 😊"
)

// Responses recorded in place of a model reply on flagged turns.
const (
	flaggedProfanityResponse = "Content flagged for profanity"
	flaggedAgeResponse       = "Content flagged for age-inappropriate content"
	flaggedRulesResponse     = "Content flagged by safety rules"
)

// ReasonProviderBlocked is the flag reason for replies withheld by the provider.
const ReasonProviderBlocked = "Response blocked by provider safety filter"

// NoTemplateName is recorded as the prompt used when a turn is rejected
// before any template was chosen.
const NoTemplateName = "none"

// MessageTooLong is the rejection for over-length input.
func MessageTooLong(limit int) string {
	return fmt.Sprintf("Message too long (max %d characters)", limit)
}

// QuotaExceeded is the rejection for a free-plan child past the daily limit.
func QuotaExceeded(limit int) string {
	return fmt.Sprintf("Đã hết lượt trò chuyện hôm nay (%d lượt). Hãy quay lại vào ngày mai hoặc nâng cấp tài khoản! 😊", limit)
}
