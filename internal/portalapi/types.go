package portalapi

// Patient is a parent record returned by the portal list endpoints. Each
// patient embeds its admission or appointment history under check_apps.
type Patient struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	CheckApps []SubRecord `json:"check_apps"`
}

// SubRecord is one admission or appointment instance belonging to a patient.
// Admissions carry ward/reason and may carry a checkout date; appointments
// carry doctor/complaint and never close.
type SubRecord struct {
	ID           string `json:"id"`
	Ward         string `json:"ward,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Doctor       string `json:"doctor,omitempty"`
	Complaint    string `json:"complaint,omitempty"`
	PubDate      string `json:"pub_date"`
	CheckoutDate string `json:"checkout_date,omitempty"`
}

// StaffProfile is the session user's reference record.
type StaffProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Email      string `json:"email,omitempty"`
}

// CreateAdmissionRequest is the payload for admitting a patient.
type CreateAdmissionRequest struct {
	PatientID string `json:"patient_id"`
	Ward      string `json:"ward"`
	Reason    string `json:"reason,omitempty"`
}

// UpdateAdmissionRequest is the payload for editing an open admission.
// Empty fields are left unchanged by the portal.
type UpdateAdmissionRequest struct {
	Ward   string `json:"ward,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CreateAppointmentRequest is the payload for booking an appointment.
type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	Doctor    string `json:"doctor"`
	Complaint string `json:"complaint,omitempty"`
	PubDate   string `json:"pub_date,omitempty"`
}

// CreatedRecord is the minimal acknowledgement returned by write endpoints.
type CreatedRecord struct {
	ID string `json:"id"`
}
