package domain

// ApprovalStatus is the admin review state of a driver account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
)

// DriverProfile is the authenticated user as returned by /me and by the
// login response. Role gates access: only "driver" accounts may use the app.
type DriverProfile struct {
	ID             FlexID         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone,omitempty"`
	Role           string         `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	IsActive       FlexBool       `json:"is_active"`
}

// ProfileDetails extends DriverProfile with the fields only shown on the
// profile screen.
type ProfileDetails struct {
	DriverProfile
	LicenseNumber string `json:"license_number,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
}

// ProfileUpdate carries the editable profile fields. Empty fields are
// omitted from the request and left unchanged by the backend.
type ProfileUpdate struct {
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
}
