package hr

import (
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/entity"
)

// Registry returns the field bindings for every HR entity.
func Registry() *entity.Registry {
	return entity.NewRegistry(
		employeeBinding(),
		attendanceBinding(),
		leaveRequestBinding(),
		leaveBalanceBinding(),
		leaveTypeBinding(),
		payrollBinding(),
		organizationUnitBinding(),
		positionBinding(),
	)
}

func employeeBinding() *entity.Binding {
	type E = Employee
	return entity.NewBinding[E](EntityEmployee, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("EmployeeNumber", func(e *E) *string { return &e.EmployeeNumber }),
		entity.Value("FirstName", func(e *E) *string { return &e.FirstName }),
		entity.Value("LastName", func(e *E) *string { return &e.LastName }),
		entity.Optional("EnglishName", func(e *E) **string { return &e.EnglishName }),
		entity.Enum("Gender", func(e *E) *Gender { return &e.Gender }),
		entity.Optional("DateOfBirth", func(e *E) **time.Time { return &e.DateOfBirth }),
		entity.Value("Email", func(e *E) *string { return &e.Email }),
		entity.Optional("Phone", func(e *E) **string { return &e.Phone }),
		entity.Optional("IdCardNumber", func(e *E) **string { return &e.IDCardNumber }),
		entity.Optional("PersonalEmail", func(e *E) **string { return &e.PersonalEmail }),
		entity.Optional("Address", func(e *E) **string { return &e.Address }),
		entity.Enum("Status", func(e *E) *EmployeeStatus { return &e.Status }),
		entity.Enum("EmploymentType", func(e *E) *EmploymentType { return &e.EmploymentType }),
		entity.Value("HireDate", func(e *E) *time.Time { return &e.HireDate }),
		entity.Optional("TerminationDate", func(e *E) **time.Time { return &e.TerminationDate }),
		entity.Optional("ProbationEndDate", func(e *E) **time.Time { return &e.ProbationEndDate }),
		entity.Optional("DirectManagerId", func(e *E) **uuid.UUID { return &e.DirectManagerID }),
		entity.Optional("OrganizationUnitId", func(e *E) **uuid.UUID { return &e.OrganizationUnitID }),
		entity.Value("CreatedAt", func(e *E) *time.Time { return &e.CreatedAt }),
		entity.Optional("UpdatedAt", func(e *E) **time.Time { return &e.UpdatedAt }),
	)
}

func attendanceBinding() *entity.Binding {
	type E = AttendanceRecord
	return entity.NewBinding[E](EntityAttendanceRecord, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("EmployeeId", func(e *E) *uuid.UUID { return &e.EmployeeID }),
		entity.Value("AttendanceDate", func(e *E) *time.Time { return &e.AttendanceDate }),
		entity.Optional("CheckInTime", func(e *E) **time.Time { return &e.CheckInTime }),
		entity.Optional("CheckOutTime", func(e *E) **time.Time { return &e.CheckOutTime }),
		entity.Optional("CheckInMethod", func(e *E) **string { return &e.CheckInMethod }),
		entity.Optional("CheckOutMethod", func(e *E) **string { return &e.CheckOutMethod }),
		entity.Optional("CheckInLocation", func(e *E) **string { return &e.CheckInLocation }),
		entity.Optional("CheckOutLocation", func(e *E) **string { return &e.CheckOutLocation }),
		entity.Enum("Status", func(e *E) *AttendanceStatus { return &e.Status }),
		entity.Value("LateMinutes", func(e *E) *int { return &e.LateMinutes }),
		entity.Value("EarlyLeaveMinutes", func(e *E) *int { return &e.EarlyLeaveMinutes }),
		entity.Value("ActualHours", func(e *E) *float64 { return &e.ActualHours }),
		entity.Value("OvertimeHours", func(e *E) *float64 { return &e.OvertimeHours }),
		entity.Optional("Remarks", func(e *E) **string { return &e.Remarks }),
		entity.Value("IsApproved", func(e *E) *bool { return &e.IsApproved }),
		entity.Optional("ApprovedBy", func(e *E) **uuid.UUID { return &e.ApprovedBy }),
		entity.Optional("ApprovedAt", func(e *E) **time.Time { return &e.ApprovedAt }),
	)
}

func leaveRequestBinding() *entity.Binding {
	type E = LeaveRequest
	return entity.NewBinding[E](EntityLeaveRequest, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("EmployeeId", func(e *E) *uuid.UUID { return &e.EmployeeID }),
		entity.Value("LeaveTypeId", func(e *E) *uuid.UUID { return &e.LeaveTypeID }),
		entity.Value("StartDate", func(e *E) *time.Time { return &e.StartDate }),
		entity.Value("EndDate", func(e *E) *time.Time { return &e.EndDate }),
		entity.Enum("StartDayPart", func(e *E) *DayPart { return &e.StartDayPart }),
		entity.Enum("EndDayPart", func(e *E) *DayPart { return &e.EndDayPart }),
		entity.Value("TotalDays", func(e *E) *float64 { return &e.TotalDays }),
		entity.Value("Reason", func(e *E) *string { return &e.Reason }),
		entity.Optional("Attachments", func(e *E) **string { return &e.Attachments }),
		entity.Enum("Status", func(e *E) *LeaveStatus { return &e.Status }),
		entity.Optional("CancelReason", func(e *E) **string { return &e.CancelReason }),
		entity.Value("CreatedAt", func(e *E) *time.Time { return &e.CreatedAt }),
	)
}

func leaveBalanceBinding() *entity.Binding {
	type E = LeaveBalance
	return entity.NewBinding[E](EntityLeaveBalance, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("EmployeeId", func(e *E) *uuid.UUID { return &e.EmployeeID }),
		entity.Value("LeaveTypeId", func(e *E) *uuid.UUID { return &e.LeaveTypeID }),
		entity.Value("Year", func(e *E) *int { return &e.Year }),
		entity.Value("Entitlement", func(e *E) *float64 { return &e.Entitlement }),
		entity.Value("CarriedOver", func(e *E) *float64 { return &e.CarriedOver }),
		entity.Value("Used", func(e *E) *float64 { return &e.Used }),
		entity.Value("Pending", func(e *E) *float64 { return &e.Pending }),
	)
}

func leaveTypeBinding() *entity.Binding {
	type E = LeaveType
	return entity.NewBinding[E](EntityLeaveType, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("Name", func(e *E) *string { return &e.Name }),
		entity.Value("Code", func(e *E) *string { return &e.Code }),
		entity.Optional("Description", func(e *E) **string { return &e.Description }),
		entity.Value("IsPaid", func(e *E) *bool { return &e.IsPaid }),
		entity.Value("RequiresApproval", func(e *E) *bool { return &e.RequiresApproval }),
		entity.Value("AllowHalfDay", func(e *E) *bool { return &e.AllowHalfDay }),
		entity.Value("MinUnit", func(e *E) *float64 { return &e.MinUnit }),
		entity.Optional("MaxDaysPerRequest", func(e *E) **int { return &e.MaxDaysPerRequest }),
		entity.Value("RequiresAttachment", func(e *E) *bool { return &e.RequiresAttachment }),
		entity.Optional("Color", func(e *E) **string { return &e.Color }),
		entity.Value("IsActive", func(e *E) *bool { return &e.IsActive }),
	)
}

func payrollBinding() *entity.Binding {
	type E = PayrollRecord
	return entity.NewBinding[E](EntityPayrollRecord, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("EmployeeId", func(e *E) *uuid.UUID { return &e.EmployeeID }),
		entity.Value("PayrollPeriodId", func(e *E) *uuid.UUID { return &e.PayrollPeriodID }),
		entity.Value("BaseSalary", func(e *E) *float64 { return &e.BaseSalary }),
		entity.Value("GrossSalary", func(e *E) *float64 { return &e.GrossSalary }),
		entity.Value("TotalDeductions", func(e *E) *float64 { return &e.TotalDeductions }),
		entity.Value("NetSalary", func(e *E) *float64 { return &e.NetSalary }),
		entity.Value("IncomeTax", func(e *E) *float64 { return &e.IncomeTax }),
		entity.Value("SocialInsuranceEmployee", func(e *E) *float64 { return &e.SocialInsuranceEmployee }),
		entity.Value("HousingFundEmployee", func(e *E) *float64 { return &e.HousingFundEmployee }),
		entity.Enum("Status", func(e *E) *PayrollStatus { return &e.Status }),
	)
}

func organizationUnitBinding() *entity.Binding {
	type E = OrganizationUnit
	return entity.NewBinding[E](EntityOrganizationUnit, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("Name", func(e *E) *string { return &e.Name }),
		entity.Value("Code", func(e *E) *string { return &e.Code }),
		entity.Optional("Description", func(e *E) **string { return &e.Description }),
		entity.Optional("ParentId", func(e *E) **uuid.UUID { return &e.ParentID }),
		entity.Value("Path", func(e *E) *string { return &e.Path }),
		entity.Value("Level", func(e *E) *int { return &e.Level }),
		entity.Value("SortOrder", func(e *E) *int { return &e.SortOrder }),
		entity.Enum("Type", func(e *E) *OrganizationUnitType { return &e.Type }),
		entity.Value("IsActive", func(e *E) *bool { return &e.IsActive }),
		entity.Optional("ManagerId", func(e *E) **uuid.UUID { return &e.ManagerID }),
	)
}

func positionBinding() *entity.Binding {
	type E = Position
	return entity.NewBinding[E](EntityPosition, "Id",
		entity.Value("Id", func(e *E) *uuid.UUID { return &e.ID }),
		entity.Value("TenantId", func(e *E) *uuid.UUID { return &e.TenantID }),
		entity.Value("Name", func(e *E) *string { return &e.Name }),
		entity.Value("Code", func(e *E) *string { return &e.Code }),
		entity.Optional("Description", func(e *E) **string { return &e.Description }),
		entity.Optional("OrganizationUnitId", func(e *E) **uuid.UUID { return &e.OrganizationUnitID }),
		entity.Optional("Sequence", func(e *E) **string { return &e.Sequence }),
		entity.Value("Level", func(e *E) *int { return &e.Level }),
		entity.Optional("SalaryRangeMin", func(e *E) **float64 { return &e.SalaryRangeMin }),
		entity.Optional("SalaryRangeMax", func(e *E) **float64 { return &e.SalaryRangeMax }),
		entity.Value("IsActive", func(e *E) *bool { return &e.IsActive }),
	)
}
