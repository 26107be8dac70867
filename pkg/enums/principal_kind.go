package enums

import "fmt"

// PrincipalKind tells the auth layer which table a token subject lives in.
type PrincipalKind string

const (
	PrincipalUser   PrincipalKind = "user"
	PrincipalWorker PrincipalKind = "worker"
)

func (k PrincipalKind) String() string {
	return string(k)
}

func (k PrincipalKind) IsValid() bool {
	return k == PrincipalUser || k == PrincipalWorker
}

func ParsePrincipalKind(value string) (PrincipalKind, error) {
	kind := PrincipalKind(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid principal kind %q", value)
	}
	return kind, nil
}
