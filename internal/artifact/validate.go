package artifact

import "strings"

// ValidateBackup checks the required-field constraints for a backup record.
// It returns nil when the record is acceptable for insertion.
func ValidateBackup(b Backup) *ValidationError {
	var problems []string
	if strings.TrimSpace(b.Equipment) == "" {
		problems = append(problems, "equipment is required")
	}
	if strings.TrimSpace(b.Designation) == "" {
		problems = append(problems, "designation is required")
	}
	if strings.TrimSpace(b.Client) == "" {
		problems = append(problems, "client is required")
	}
	if b.BackupDate.IsZero() {
		problems = append(problems, "backup date is required")
	}
	if strings.TrimSpace(b.Status) == "" {
		problems = append(problems, "status is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ValidateSoftware checks the required-field constraints for a software
// record. Catalogue membership of the type/model pair is the service's
// concern, not the repository's.
func ValidateSoftware(sw Software) *ValidationError {
	var problems []string
	if strings.TrimSpace(sw.DeviceType) == "" {
		problems = append(problems, "device type is required")
	}
	if strings.TrimSpace(sw.DeviceModel) == "" {
		problems = append(problems, "device model is required")
	}
	if strings.TrimSpace(sw.Version) == "" {
		problems = append(problems, "version is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
