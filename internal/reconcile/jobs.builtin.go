package reconcile

// Tên các job có sẵn
const (
	JobMachines          = "machines"
	JobEmployees         = "employees"
	JobLockerAssignments = "locker-assignments"
)

const (
	syncStatusField  = "estado_sincronizacion"
	syncStatusSynced = "sincronizado"
)

// BuiltinJobs trả về các job hợp nhất có sẵn (bản mới mỗi lần gọi)
func BuiltinJobs() []*Job {
	return []*Job{machinesJob(), employeesJob(), lockerAssignmentsJob()}
}

// machinesJob: Machine -> MachineMasterDatabase
func machinesJob() *Job {
	return &Job{
		Name:        JobMachines,
		Description: "Hợp nhất Machine vào MachineMasterDatabase và sửa machine_id ở lịch bảo trì, phân công, kế hoạch sản xuất",
		Legacy:      LegacySource{Collection: "Machine", KeyField: "codigo"},
		Canonical: CanonicalTarget{
			Collection:      "MachineMasterDatabase",
			KeyField:        "codigo",
			LegacyRefField:  "machine_id_legacy",
			SyncStatusField: syncStatusField,
			SyncStatusValue: syncStatusSynced,
		},
		Fields: []FieldMapping{
			{From: "nombre"},
			{From: "codigo"},
			{From: "tipo"},
			{From: "marca"},
			{From: "modelo"},
			{From: "numero_serie"},
			{From: "ubicacion"},
			{From: "estado"},
			{From: "descripcion"},
			{From: "fecha_instalacion"},
			{From: "orden", To: "orden_visualizacion"},
		},
		Defaults: map[string]interface{}{
			"estado":   "Disponible",
			"programa": "Sin programa",
		},
		Sequences: []Sequence{
			{Prefix: "tarea_", Max: 6, Target: "tareas"},
			{Prefix: "subtarea_", Max: 8, Target: "subtareas"},
		},
		Dependents: []Dependent{
			{Collection: "MaintenanceSchedule", ForeignKey: "machine_id"},
			{Collection: "MachineAssignment", ForeignKey: "machine_id"},
			{Collection: "ProductionPlanning", ForeignKey: "machine_id"},
		},
	}
}

// employeesJob: Employee -> EmployeeMasterDatabase
func employeesJob() *Job {
	return &Job{
		Name:        JobEmployees,
		Description: "Hợp nhất Employee vào EmployeeMasterDatabase và sửa employee_id ở vắng mặt, ca làm, tủ đồ, kỹ năng",
		Legacy:      LegacySource{Collection: "Employee", KeyField: "codigo_empleado"},
		Canonical: CanonicalTarget{
			Collection:      "EmployeeMasterDatabase",
			KeyField:        "codigo_empleado",
			LegacyRefField:  "employee_id_legacy",
			SyncStatusField: syncStatusField,
			SyncStatusValue: syncStatusSynced,
		},
		Fields: []FieldMapping{
			{From: "nombre"},
			{From: "codigo_empleado"},
			{From: "email"},
			{From: "telefono_movil"},
			{From: "departamento"},
			{From: "puesto"},
			{From: "categoria"},
			{From: "tipo_jornada"},
			{From: "tipo_turno"},
			{From: "equipo"},
			{From: "fecha_alta"},
			{From: "fecha_nacimiento"},
			{From: "dni"},
		},
		Defaults: map[string]interface{}{
			"estado_empleado": "Alta",
			"disponibilidad":  "Disponible",
			"tipo_jornada":    "Jornada Completa",
		},
		Sequences: []Sequence{
			{Prefix: "maquina_", Max: 10, Target: "maquinas"},
		},
		Dependents: []Dependent{
			{Collection: "Absence", ForeignKey: "employee_id"},
			{Collection: "ShiftAssignment", ForeignKey: "employee_id"},
			{Collection: "LockerAssignment", ForeignKey: "employee_id"},
			{Collection: "EmployeeSkill", ForeignKey: "employee_id"},
		},
	}
}

// lockerAssignmentsJob: biến thể audit trên LockerAssignment, không migrate, chỉ báo cáo tham chiếu hỏng
func lockerAssignmentsJob() *Job {
	job := employeesJob()
	return &Job{
		Name:          JobLockerAssignments,
		Description:   "Đối soát LockerAssignment với EmployeeMasterDatabase: sửa employee_id đã map được, báo cáo tham chiếu hỏng",
		Legacy:        job.Legacy,
		Canonical:     job.Canonical,
		SkipMigration: true,
		Dependents: []Dependent{
			{Collection: "LockerAssignment", ForeignKey: "employee_id", Policy: PolicyReport},
		},
	}
}
