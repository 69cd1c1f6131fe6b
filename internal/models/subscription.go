package models

// Subscription is one intake record, persisted as flat JSON alongside the
// saved receipt image.
type Subscription struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	ReceiptFileName string `json:"receiptFileName"`
	Timestamp       string `json:"timestamp"`
	Status          string `json:"status"` // pending, confirmed, rejected

	// Credentials assigned by the admin when a subscription is confirmed.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

const (
	SubscriptionPending   = "pending"
	SubscriptionConfirmed = "confirmed"
	SubscriptionRejected  = "rejected"
)

// Admin is one operator account in admins.json.
type Admin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AppConfig is the operator-editable application config served to clients.
type AppConfig struct {
	SupportEmail string `json:"supportEmail"`
}

// SubscribeRequest is the body of POST /api/subscribe. Receipt is a base64
// data URL of the payment receipt image.
type SubscribeRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Receipt string `json:"receipt" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateStatusRequest struct {
	ID     int64  `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
	// Optional credentials to activate alongside a confirmation.
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	Username    string `json:"username" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}
