package outprocmod

import "github.com/google/uuid"

// newModuleID mints the stable identifier a Handle publishes under on the
// broker.
func newModuleID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
