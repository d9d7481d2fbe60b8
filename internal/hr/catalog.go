package hr

import (
	"github.com/duckmesh/askhr/internal/schema"
)

const (
	PermissionHRAdmin     = "hr:admin"
	PermissionPayrollRead = "payroll:read"
)

// Catalog builds the HR schema catalog with its few-shot examples.
func Catalog() *schema.Catalog {
	return schema.NewCatalog([]schema.EntitySchema{
		employeeSchema(),
		attendanceSchema(),
		leaveRequestSchema(),
		leaveBalanceSchema(),
		leaveTypeSchema(),
		payrollSchema(),
		organizationUnitSchema(),
		positionSchema(),
	}, Examples())
}

type fieldOption func(*schema.FieldSchema)

func field(name, display string, fieldType schema.FieldType, options ...fieldOption) schema.FieldSchema {
	item := schema.FieldSchema{
		Name:        name,
		DisplayName: display,
		Type:        fieldType,
		Filterable:  true,
		Sortable:    true,
	}
	for _, option := range options {
		option(&item)
	}
	return item
}

func nullable() fieldOption {
	return func(f *schema.FieldSchema) { f.Nullable = true }
}

func primaryKey() fieldOption {
	return func(f *schema.FieldSchema) {
		f.PrimaryKey = true
		f.ReadOnly = true
	}
}

func references(entity string) fieldOption {
	return func(f *schema.FieldSchema) {
		f.ForeignKey = true
		f.References = entity
	}
}

func readOnly() fieldOption {
	return func(f *schema.FieldSchema) { f.ReadOnly = true }
}

func sensitive(permission string) fieldOption {
	return func(f *schema.FieldSchema) {
		f.Sensitive = true
		f.RequiredPermission = permission
		f.Filterable = false
		f.Sortable = false
	}
}

func aliases(values ...string) fieldOption {
	return func(f *schema.FieldSchema) { f.Aliases = values }
}

func enum(pairs ...string) fieldOption {
	return func(f *schema.FieldSchema) {
		for i := 0; i+1 < len(pairs); i += 2 {
			f.EnumValues = append(f.EnumValues, schema.EnumValue{Name: pairs[i], DisplayName: pairs[i+1], Ordinal: i / 2})
		}
	}
}

func describe(text string) fieldOption {
	return func(f *schema.FieldSchema) { f.Description = text }
}

func idField() schema.FieldSchema {
	return field("Id", "ID", schema.TypeUUID, primaryKey())
}

func tenantField() schema.FieldSchema {
	item := field("TenantId", "租户ID", schema.TypeUUID, readOnly())
	item.Internal = true
	item.Filterable = false
	item.Sortable = false
	return item
}

func employeeSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:         EntityEmployee,
		DisplayName:  "员工",
		Description:  "员工基本信息，包括姓名、工号、部门、入职日期和在职状态",
		Aliases:      []string{"职员", "成员", "人员", "员工信息"},
		SupportsCrud: true,
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("EmployeeNumber", "工号", schema.TypeString, aliases("员工编号", "编号")),
			field("FirstName", "名", schema.TypeString),
			field("LastName", "姓", schema.TypeString),
			field("EnglishName", "英文名", schema.TypeString, nullable()),
			field("Gender", "性别", schema.TypeEnum, enum("Male", "男", "Female", "女", "Other", "其他")),
			field("DateOfBirth", "出生日期", schema.TypeDate, nullable(), aliases("生日")),
			field("Email", "工作邮箱", schema.TypeString, aliases("邮箱")),
			field("Phone", "电话", schema.TypeString, nullable(), aliases("手机", "手机号")),
			field("IdCardNumber", "身份证号", schema.TypeString, nullable(), sensitive(PermissionHRAdmin)),
			field("PersonalEmail", "个人邮箱", schema.TypeString, nullable(), sensitive("")),
			field("Address", "地址", schema.TypeString, nullable()),
			field("Status", "在职状态", schema.TypeEnum, aliases("状态"),
				enum("Active", "在职", "OnLeave", "休假中", "Suspended", "停职", "Terminated", "离职")),
			field("EmploymentType", "用工类型", schema.TypeEnum,
				enum("FullTime", "全职", "PartTime", "兼职", "Contract", "合同工", "Intern", "实习", "Consultant", "顾问")),
			field("HireDate", "入职日期", schema.TypeDate, aliases("入职时间")),
			field("TerminationDate", "离职日期", schema.TypeDate, nullable(), aliases("离职时间")),
			field("ProbationEndDate", "试用期结束日期", schema.TypeDate, nullable()),
			field("DirectManagerId", "直属上级", schema.TypeUUID, nullable(), references(EntityEmployee)),
			field("OrganizationUnitId", "所属部门", schema.TypeUUID, nullable(), references(EntityOrganizationUnit), aliases("部门")),
			field("CreatedAt", "创建时间", schema.TypeDateTime, readOnly()),
			field("UpdatedAt", "更新时间", schema.TypeDateTime, nullable(), readOnly()),
		},
		Relations: []schema.Relation{
			{Name: "DirectManager", RelatedEntity: EntityEmployee, Kind: "ManyToOne", ForeignKey: "DirectManagerId"},
			{Name: "OrganizationUnit", RelatedEntity: EntityOrganizationUnit, Kind: "ManyToOne", ForeignKey: "OrganizationUnitId"},
			{Name: "AttendanceRecords", RelatedEntity: EntityAttendanceRecord, Kind: "OneToMany", ForeignKey: "EmployeeId"},
			{Name: "LeaveRequests", RelatedEntity: EntityLeaveRequest, Kind: "OneToMany", ForeignKey: "EmployeeId"},
		},
	}
}

func attendanceSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:         EntityAttendanceRecord,
		DisplayName:  "考勤记录",
		Description:  "员工每日考勤打卡记录，包含签到签退时间、迟到早退和工时",
		Aliases:      []string{"考勤", "打卡记录", "出勤记录", "打卡"},
		SupportsCrud: true,
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("EmployeeId", "员工", schema.TypeUUID, references(EntityEmployee)),
			field("AttendanceDate", "考勤日期", schema.TypeDate, aliases("日期")),
			field("CheckInTime", "签到时间", schema.TypeDateTime, nullable(), aliases("上班打卡时间")),
			field("CheckOutTime", "签退时间", schema.TypeDateTime, nullable(), aliases("下班打卡时间")),
			field("CheckInMethod", "签到方式", schema.TypeString, nullable()),
			field("CheckOutMethod", "签退方式", schema.TypeString, nullable()),
			field("CheckInLocation", "签到地点", schema.TypeString, nullable()),
			field("CheckOutLocation", "签退地点", schema.TypeString, nullable()),
			field("Status", "考勤状态", schema.TypeEnum, aliases("状态"),
				enum("Pending", "待处理", "Normal", "正常", "Late", "迟到", "EarlyLeave", "早退",
					"Absent", "缺勤", "Incomplete", "打卡不完整", "Leave", "请假", "BusinessTrip", "出差")),
			field("LateMinutes", "迟到分钟数", schema.TypeInt),
			field("EarlyLeaveMinutes", "早退分钟数", schema.TypeInt),
			field("ActualHours", "实际工时", schema.TypeDecimal),
			field("OvertimeHours", "加班工时", schema.TypeDecimal, aliases("加班时长")),
			field("Remarks", "备注", schema.TypeString, nullable()),
			field("IsApproved", "已审批", schema.TypeBool),
			field("ApprovedBy", "审批人", schema.TypeUUID, nullable(), references(EntityEmployee)),
			field("ApprovedAt", "审批时间", schema.TypeDateTime, nullable()),
		},
		Relations: []schema.Relation{
			{Name: "Employee", RelatedEntity: EntityEmployee, Kind: "ManyToOne", ForeignKey: "EmployeeId"},
		},
	}
}

func leaveRequestSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:         EntityLeaveRequest,
		DisplayName:  "请假申请",
		Description:  "员工提交的请假申请及其审批状态",
		Aliases:      []string{"请假", "请假记录", "休假申请"},
		SupportsCrud: true,
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("EmployeeId", "员工", schema.TypeUUID, references(EntityEmployee)),
			field("LeaveTypeId", "假期类型", schema.TypeUUID, references(EntityLeaveType)),
			field("StartDate", "开始日期", schema.TypeDate, aliases("请假开始")),
			field("EndDate", "结束日期", schema.TypeDate, aliases("请假结束")),
			field("StartDayPart", "开始时段", schema.TypeEnum, enum("FullDay", "全天", "Morning", "上午", "Afternoon", "下午")),
			field("EndDayPart", "结束时段", schema.TypeEnum, enum("FullDay", "全天", "Morning", "上午", "Afternoon", "下午")),
			field("TotalDays", "请假天数", schema.TypeDecimal, aliases("天数")),
			field("Reason", "请假原因", schema.TypeString, aliases("原因")),
			field("Attachments", "附件", schema.TypeString, nullable()),
			field("Status", "审批状态", schema.TypeEnum, aliases("状态"),
				enum("Pending", "待审批", "Approved", "已批准", "Rejected", "已拒绝", "Cancelled", "已取消")),
			field("CancelReason", "取消原因", schema.TypeString, nullable()),
			field("CreatedAt", "申请时间", schema.TypeDateTime, readOnly()),
		},
		Relations: []schema.Relation{
			{Name: "Employee", RelatedEntity: EntityEmployee, Kind: "ManyToOne", ForeignKey: "EmployeeId"},
			{Name: "LeaveType", RelatedEntity: EntityLeaveType, Kind: "ManyToOne", ForeignKey: "LeaveTypeId"},
		},
	}
}

func leaveBalanceSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:        EntityLeaveBalance,
		DisplayName: "假期余额",
		Description: "员工每年各类假期的额度、已用和剩余情况",
		Aliases:     []string{"假期额度", "年假余额", "余额"},
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("EmployeeId", "员工", schema.TypeUUID, references(EntityEmployee)),
			field("LeaveTypeId", "假期类型", schema.TypeUUID, references(EntityLeaveType)),
			field("Year", "年度", schema.TypeInt, aliases("年份")),
			field("Entitlement", "应有额度", schema.TypeDecimal, aliases("额度")),
			field("CarriedOver", "结转天数", schema.TypeDecimal),
			field("Used", "已用天数", schema.TypeDecimal, aliases("已用")),
			field("Pending", "审批中天数", schema.TypeDecimal),
		},
		Relations: []schema.Relation{
			{Name: "Employee", RelatedEntity: EntityEmployee, Kind: "ManyToOne", ForeignKey: "EmployeeId"},
			{Name: "LeaveType", RelatedEntity: EntityLeaveType, Kind: "ManyToOne", ForeignKey: "LeaveTypeId"},
		},
	}
}

func leaveTypeSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:         EntityLeaveType,
		DisplayName:  "假期类型",
		Description:  "年假、病假、事假等假期类型定义",
		Aliases:      []string{"假别", "假期种类"},
		SupportsCrud: true,
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("Name", "名称", schema.TypeString, aliases("假期名称")),
			field("Code", "编码", schema.TypeString),
			field("Description", "描述", schema.TypeString, nullable()),
			field("IsPaid", "带薪", schema.TypeBool),
			field("RequiresApproval", "需要审批", schema.TypeBool),
			field("AllowHalfDay", "允许半天", schema.TypeBool),
			field("MinUnit", "最小单位", schema.TypeDecimal),
			field("MaxDaysPerRequest", "单次最多天数", schema.TypeInt, nullable()),
			field("RequiresAttachment", "需要附件", schema.TypeBool),
			field("Color", "颜色", schema.TypeString, nullable()),
			field("IsActive", "启用", schema.TypeBool),
		},
	}
}

func payrollSchema() schema.EntitySchema {
	money := func(name, display string, extra ...fieldOption) schema.FieldSchema {
		return field(name, display, schema.TypeDecimal, append([]fieldOption{sensitive(PermissionPayrollRead)}, extra...)...)
	}
	return schema.EntitySchema{
		Name:        EntityPayrollRecord,
		DisplayName: "薪资记录",
		Description: "员工每个薪资周期的工资明细",
		Aliases:     []string{"工资", "薪资", "工资单", "薪酬"},
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("EmployeeId", "员工", schema.TypeUUID, references(EntityEmployee)),
			field("PayrollPeriodId", "薪资周期", schema.TypeUUID),
			money("BaseSalary", "基本工资"),
			money("GrossSalary", "应发工资"),
			money("TotalDeductions", "扣款合计"),
			money("NetSalary", "实发工资", aliases("到手工资")),
			money("IncomeTax", "个人所得税"),
			money("SocialInsuranceEmployee", "个人社保"),
			money("HousingFundEmployee", "个人公积金"),
			field("Status", "状态", schema.TypeEnum,
				enum("Draft", "草稿", "Calculated", "已计算", "Approved", "已审批", "Paid", "已发放")),
		},
		Relations: []schema.Relation{
			{Name: "Employee", RelatedEntity: EntityEmployee, Kind: "ManyToOne", ForeignKey: "EmployeeId"},
		},
	}
}

func organizationUnitSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:         EntityOrganizationUnit,
		DisplayName:  "组织单元",
		Description:  "公司、事业部、部门、团队等组织架构节点",
		Aliases:      []string{"部门", "组织", "团队", "组织架构"},
		SupportsCrud: true,
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("Name", "名称", schema.TypeString, aliases("部门名称")),
			field("Code", "编码", schema.TypeString),
			field("Description", "描述", schema.TypeString, nullable()),
			field("ParentId", "上级组织", schema.TypeUUID, nullable(), references(EntityOrganizationUnit)),
			field("Path", "路径", schema.TypeString, describe("从根节点开始的编码路径")),
			field("Level", "层级", schema.TypeInt),
			field("SortOrder", "排序", schema.TypeInt),
			field("Type", "类型", schema.TypeEnum,
				enum("Company", "公司", "Division", "事业部", "Department", "部门", "Team", "团队", "Group", "小组")),
			field("IsActive", "启用", schema.TypeBool),
			field("ManagerId", "负责人", schema.TypeUUID, nullable(), references(EntityEmployee)),
		},
		Relations: []schema.Relation{
			{Name: "Parent", RelatedEntity: EntityOrganizationUnit, Kind: "ManyToOne", ForeignKey: "ParentId"},
			{Name: "Employees", RelatedEntity: EntityEmployee, Kind: "OneToMany", ForeignKey: "OrganizationUnitId"},
		},
	}
}

func positionSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Name:         EntityPosition,
		DisplayName:  "职位",
		Description:  "职位定义及其所属组织",
		Aliases:      []string{"岗位", "职务"},
		SupportsCrud: true,
		Fields: []schema.FieldSchema{
			idField(),
			tenantField(),
			field("Name", "名称", schema.TypeString, aliases("职位名称")),
			field("Code", "编码", schema.TypeString),
			field("Description", "描述", schema.TypeString, nullable()),
			field("OrganizationUnitId", "所属组织", schema.TypeUUID, nullable(), references(EntityOrganizationUnit)),
			field("Sequence", "职级序列", schema.TypeString, nullable()),
			field("Level", "职级", schema.TypeInt),
			field("SalaryRangeMin", "薪资下限", schema.TypeDecimal, nullable(), sensitive(PermissionHRAdmin)),
			field("SalaryRangeMax", "薪资上限", schema.TypeDecimal, nullable(), sensitive(PermissionHRAdmin)),
			field("IsActive", "启用", schema.TypeBool),
		},
		Relations: []schema.Relation{
			{Name: "OrganizationUnit", RelatedEntity: EntityOrganizationUnit, Kind: "ManyToOne", ForeignKey: "OrganizationUnitId"},
		},
	}
}
