package entity

// Guard запрещает удаление записей, нарушающих бизнес-правила.
type Guard interface {
	CheckDelete(target Record, all []Record) error
}

type GuardFunc func(target Record, all []Record) error

func (f GuardFunc) CheckDelete(target Record, all []Record) error {
	return f(target, all)
}

// DefaultGuards возвращает правила удаления по типам.
func DefaultGuards() map[Kind]Guard {
	return map[Kind]Guard{
		KindStaff: GuardFunc(SoleSuperAdminGuard),
	}
}

// SoleSuperAdminGuard не дает удалить последнего суперадминистратора.
func SoleSuperAdminGuard(target Record, all []Record) error {
	staff, ok := target.Fields.(StaffFields)
	if !ok || !staff.HasRole(RoleSuperAdmin) {
		return nil
	}

	for _, r := range all {
		if r.ID == target.ID || r.Deleted || r.Kind != KindStaff {
			continue
		}
		if other, ok := r.Fields.(StaffFields); ok && other.HasRole(RoleSuperAdmin) {
			return nil
		}
	}

	return &ProtectedRecordError{
		Kind:   target.Kind,
		ID:     target.ID,
		Reason: "sole super administrator",
	}
}
