package dto

// EmailNotificationRequest is the payload for sending a notification e-mail.
type EmailNotificationRequest struct {
	To      string `json:"to" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=20000"`
}

// EmailNotificationResponse reports the delivery outcome.
type EmailNotificationResponse struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
}
