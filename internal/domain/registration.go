package domain

import (
	"slices"
	"time"
)

// NotApplicable is stored for fields skipped by a conditional branch.
const NotApplicable = "N/A"

// RegStep enumerates the registration flow, including the edit detours.
type RegStep string

const (
	RegAwaitingID           RegStep = "awaiting_id_passport"
	RegAwaitingFirstName    RegStep = "awaiting_first_name"
	RegAwaitingLastName     RegStep = "awaiting_last_name"
	RegAwaitingDOB          RegStep = "awaiting_dob"
	RegAwaitingGender       RegStep = "awaiting_gender"
	RegAwaitingPhone        RegStep = "awaiting_phone"
	RegAwaitingSalvation    RegStep = "awaiting_salvation_status"
	RegAwaitingDependents   RegStep = "awaiting_dependents"
	RegAwaitingIsWorker     RegStep = "awaiting_is_worker"
	RegAwaitingWorkerType   RegStep = "awaiting_worker_type"
	RegAwaitingNOKName      RegStep = "awaiting_nok_name"
	RegAwaitingNOKPhone     RegStep = "awaiting_nok_phone"
	RegAwaitingStartDate    RegStep = "awaiting_camp_start_date"
	RegAwaitingEndDate      RegStep = "awaiting_camp_end_date"
	RegAwaitingVolunteer    RegStep = "awaiting_volunteer_status"
	RegAwaitingDepartment   RegStep = "awaiting_volunteer_department"
	RegAwaitingTransport    RegStep = "awaiting_transport_assistance"
	RegAwaitingConfirmation RegStep = "awaiting_confirmation"
	RegAwaitingFieldToEdit  RegStep = "awaiting_field_to_edit"
	RegEditName             RegStep = "awaiting_edit_name"
	RegEditPhone            RegStep = "awaiting_edit_phone"
	RegEditNOKName          RegStep = "awaiting_edit_nok_name"
	RegEditNOKPhone         RegStep = "awaiting_edit_nok_phone"
	RegEditVolunteer        RegStep = "awaiting_edit_volunteer_status"
	RegEditDepartment       RegStep = "awaiting_edit_volunteer_department"
	RegEditStartDate        RegStep = "awaiting_edit_start_date"
	RegEditEndDate          RegStep = "awaiting_edit_end_date"
)

// RegSteps is the finite step set of ModeRegistration.
var RegSteps = []RegStep{
	RegAwaitingID, RegAwaitingFirstName, RegAwaitingLastName, RegAwaitingDOB,
	RegAwaitingGender, RegAwaitingPhone, RegAwaitingSalvation, RegAwaitingDependents,
	RegAwaitingIsWorker, RegAwaitingWorkerType, RegAwaitingNOKName, RegAwaitingNOKPhone,
	RegAwaitingStartDate, RegAwaitingEndDate, RegAwaitingVolunteer, RegAwaitingDepartment,
	RegAwaitingTransport, RegAwaitingConfirmation, RegAwaitingFieldToEdit,
	RegEditName, RegEditPhone, RegEditNOKName, RegEditNOKPhone,
	RegEditVolunteer, RegEditDepartment, RegEditStartDate, RegEditEndDate,
}

// Valid reports whether s belongs to the registration step set.
func (s RegStep) Valid() bool {
	return slices.Contains(RegSteps, s)
}

// RegistrationData is the working data collected by the registration flow.
// JSON names match the columns written by exports.
type RegistrationData struct {
	IDPassport          string `json:"id_passport"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	DOB                 string `json:"dob"`
	Age                 int    `json:"age"`
	Gender              string `json:"gender"`
	Phone               string `json:"phone"`
	SalvationStatus     string `json:"salvation_status"`
	Dependents          string `json:"dependents"`
	IsWorker            string `json:"is_worker"`
	WorkerType          string `json:"worker_type"`
	VolunteerStatus     string `json:"volunteer_status"`
	VolunteerDepartment string `json:"volunteer_department"`
	TransportAssistance string `json:"transport_assistance"`
	NOKName             string `json:"nok_name"`
	NOKPhone            string `json:"nok_phone"`
	CampStart           string `json:"camp_start"`
	CampEnd             string `json:"camp_end"`
}

// FullName joins first and last name.
func (d RegistrationData) FullName() string {
	switch {
	case d.LastName == "":
		return d.FirstName
	case d.FirstName == "":
		return d.LastName
	}
	return d.FirstName + " " + d.LastName
}

// Registration is a finalized registration record. It is keyed by
// (Event, Data.IDPassport) and is never updated after creation.
type Registration struct {
	Event     EventType
	Data      RegistrationData
	CreatedAt time.Time
}

// ID returns the natural identifier of the record.
func (r *Registration) ID() string {
	return r.Data.IDPassport
}
