package hr

import (
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

// Examples is the few-shot bank shown to the translation model.
func Examples() []schema.Example {
	return []schema.Example{
		{
			Question: "查询张三的考勤记录",
			Query: query.StructuredQuery{
				Operation:    query.OperationSelect,
				TargetEntity: EntityAttendanceRecord,
				SelectFields: []string{"AttendanceDate", "CheckInTime", "CheckOutTime", "Status"},
				Joins: []query.JoinClause{
					{Entity: EntityEmployee, On: "AttendanceRecord.EmployeeId = Employee.Id", JoinType: "Inner"},
				},
				Filters: []query.FilterCondition{
					{Field: "Employee.LastName", Operator: query.OpEqual, Value: "张"},
					{Field: "Employee.FirstName", Operator: query.OpEqual, Value: "三"},
				},
				OrderBy: []query.OrderClause{{Field: "AttendanceDate", Descending: true}},
				Limit:   100,
			},
			Explanation: "按姓名关联员工表筛选考勤记录，按日期倒序",
		},
		{
			Question: "显示销售部门的所有员工",
			Query: query.StructuredQuery{
				Operation:    query.OperationSelect,
				TargetEntity: EntityEmployee,
				SelectFields: []string{"EmployeeNumber", "LastName", "FirstName", "Email", "HireDate"},
				Joins: []query.JoinClause{
					{Entity: EntityOrganizationUnit, On: "Employee.OrganizationUnitId = OrganizationUnit.Id", JoinType: "Inner"},
				},
				Filters: []query.FilterCondition{
					{Field: "OrganizationUnit.Name", Operator: query.OpContains, Value: "销售"},
					{Field: "Status", Operator: query.OpEqual, Value: "Active"},
				},
				Limit: 100,
			},
			Explanation: "关联组织单元按部门名称模糊匹配，只看在职员工",
		},
		{
			Question: "统计本月请假人数",
			Query: query.StructuredQuery{
				Operation:        query.OperationSelect,
				TargetEntity:     EntityLeaveRequest,
				Aggregation:      query.AggregationCountDistinct,
				AggregationField: "EmployeeId",
				Filters: []query.FilterCondition{
					{Field: "StartDate", Operator: query.OpGreaterThanOrEqual, Value: "@CurrentMonthStart"},
					{Field: "Status", Operator: query.OpEqual, Value: "Approved"},
				},
			},
			Explanation: "按员工去重计数本月开始且已批准的请假申请",
		},
		{
			Question: "查询本周迟到的员工",
			Query: query.StructuredQuery{
				Operation:    query.OperationSelect,
				TargetEntity: EntityAttendanceRecord,
				SelectFields: []string{"EmployeeId", "AttendanceDate", "CheckInTime", "LateMinutes"},
				Filters: []query.FilterCondition{
					{Field: "AttendanceDate", Operator: query.OpGreaterThanOrEqual, Value: "@CurrentWeekStart"},
					{Field: "Status", Operator: query.OpEqual, Value: "Late"},
				},
				OrderBy: []query.OrderClause{{Field: "LateMinutes", Descending: true}},
				Limit:   100,
			},
			Explanation: "本周考勤状态为迟到的记录，按迟到分钟数倒序",
		},
		{
			Question: "查询所有在职员工的年假余额",
			Query: query.StructuredQuery{
				Operation:    query.OperationSelect,
				TargetEntity: EntityLeaveBalance,
				SelectFields: []string{"EmployeeId", "Year", "Entitlement", "Used", "CarriedOver"},
				Joins: []query.JoinClause{
					{Entity: EntityEmployee, On: "LeaveBalance.EmployeeId = Employee.Id", JoinType: "Inner"},
					{Entity: EntityLeaveType, On: "LeaveBalance.LeaveTypeId = LeaveType.Id", JoinType: "Inner"},
				},
				Filters: []query.FilterCondition{
					{Field: "Employee.Status", Operator: query.OpEqual, Value: "Active"},
					{Field: "LeaveType.Code", Operator: query.OpEqual, Value: "ANNUAL"},
					{Field: "Year", Operator: query.OpEqual, Value: "@CurrentYear"},
				},
				Limit: 100,
			},
			Explanation: "关联员工和假期类型，筛选在职员工本年度年假余额",
		},
	}
}
