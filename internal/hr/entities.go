// Package hr defines the HR entities exposed to natural-language queries: their Go records,
// field bindings and catalog description.
package hr

import (
	"time"

	"github.com/google/uuid"
)

const (
	EntityEmployee         = "Employee"
	EntityAttendanceRecord = "AttendanceRecord"
	EntityLeaveRequest     = "LeaveRequest"
	EntityLeaveBalance     = "LeaveBalance"
	EntityLeaveType        = "LeaveType"
	EntityPayrollRecord    = "PayrollRecord"
	EntityOrganizationUnit = "OrganizationUnit"
	EntityPosition         = "Position"
)

// AllEntities lists every entity in catalog order.
var AllEntities = []string{
	EntityEmployee,
	EntityAttendanceRecord,
	EntityLeaveRequest,
	EntityLeaveBalance,
	EntityLeaveType,
	EntityPayrollRecord,
	EntityOrganizationUnit,
	EntityPosition,
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "Active"
	EmployeeOnLeave    EmployeeStatus = "OnLeave"
	EmployeeSuspended  EmployeeStatus = "Suspended"
	EmployeeTerminated EmployeeStatus = "Terminated"
)

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "FullTime"
	EmploymentPartTime   EmploymentType = "PartTime"
	EmploymentContract   EmploymentType = "Contract"
	EmploymentIntern     EmploymentType = "Intern"
	EmploymentConsultant EmploymentType = "Consultant"
)

type AttendanceStatus string

const (
	AttendancePending      AttendanceStatus = "Pending"
	AttendanceNormal       AttendanceStatus = "Normal"
	AttendanceLate         AttendanceStatus = "Late"
	AttendanceEarlyLeave   AttendanceStatus = "EarlyLeave"
	AttendanceAbsent       AttendanceStatus = "Absent"
	AttendanceIncomplete   AttendanceStatus = "Incomplete"
	AttendanceLeave        AttendanceStatus = "Leave"
	AttendanceBusinessTrip AttendanceStatus = "BusinessTrip"
)

type DayPart string

const (
	DayPartFullDay   DayPart = "FullDay"
	DayPartMorning   DayPart = "Morning"
	DayPartAfternoon DayPart = "Afternoon"
)

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "Pending"
	LeaveApproved  LeaveStatus = "Approved"
	LeaveRejected  LeaveStatus = "Rejected"
	LeaveCancelled LeaveStatus = "Cancelled"
)

type PayrollStatus string

const (
	PayrollDraft      PayrollStatus = "Draft"
	PayrollCalculated PayrollStatus = "Calculated"
	PayrollApproved   PayrollStatus = "Approved"
	PayrollPaid       PayrollStatus = "Paid"
)

type OrganizationUnitType string

const (
	UnitCompany    OrganizationUnitType = "Company"
	UnitDivision   OrganizationUnitType = "Division"
	UnitDepartment OrganizationUnitType = "Department"
	UnitTeam       OrganizationUnitType = "Team"
	UnitGroup      OrganizationUnitType = "Group"
)

type Employee struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	EmployeeNumber     string
	FirstName          string
	LastName           string
	EnglishName        *string
	Gender             Gender
	DateOfBirth        *time.Time
	Email              string
	Phone              *string
	IDCardNumber       *string
	PersonalEmail      *string
	Address            *string
	Status             EmployeeStatus
	EmploymentType     EmploymentType
	HireDate           time.Time
	TerminationDate    *time.Time
	ProbationEndDate   *time.Time
	DirectManagerID    *uuid.UUID
	OrganizationUnitID *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}

type AttendanceRecord struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	EmployeeID        uuid.UUID
	AttendanceDate    time.Time
	CheckInTime       *time.Time
	CheckOutTime      *time.Time
	CheckInMethod     *string
	CheckOutMethod    *string
	CheckInLocation   *string
	CheckOutLocation  *string
	Status            AttendanceStatus
	LateMinutes       int
	EarlyLeaveMinutes int
	ActualHours       float64
	OvertimeHours     float64
	Remarks           *string
	IsApproved        bool
	ApprovedBy        *uuid.UUID
	ApprovedAt        *time.Time
}

type LeaveRequest struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	EmployeeID   uuid.UUID
	LeaveTypeID  uuid.UUID
	StartDate    time.Time
	EndDate      time.Time
	StartDayPart DayPart
	EndDayPart   DayPart
	TotalDays    float64
	Reason       string
	Attachments  *string
	Status       LeaveStatus
	CancelReason *string
	CreatedAt    time.Time
}

type LeaveBalance struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	EmployeeID  uuid.UUID
	LeaveTypeID uuid.UUID
	Year        int
	Entitlement float64
	CarriedOver float64
	Used        float64
	Pending     float64
}

type LeaveType struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	Code               string
	Description        *string
	IsPaid             bool
	RequiresApproval   bool
	AllowHalfDay       bool
	MinUnit            float64
	MaxDaysPerRequest  *int
	RequiresAttachment bool
	Color              *string
	IsActive           bool
}

type PayrollRecord struct {
	ID                      uuid.UUID
	TenantID                uuid.UUID
	EmployeeID              uuid.UUID
	PayrollPeriodID         uuid.UUID
	BaseSalary              float64
	GrossSalary             float64
	TotalDeductions         float64
	NetSalary               float64
	IncomeTax               float64
	SocialInsuranceEmployee float64
	HousingFundEmployee     float64
	Status                  PayrollStatus
}

type OrganizationUnit struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Code        string
	Description *string
	ParentID    *uuid.UUID
	Path        string
	Level       int
	SortOrder   int
	Type        OrganizationUnitType
	IsActive    bool
	ManagerID   *uuid.UUID
}

type Position struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	Code               string
	Description        *string
	OrganizationUnitID *uuid.UUID
	Sequence           *string
	Level              int
	SalaryRangeMin     *float64
	SalaryRangeMax     *float64
	IsActive           bool
}
