package types

import (
	"strconv"
	"time"
)

// StoredCredential is what `auth save` persists for a profile
type StoredCredential struct {
	Profile   string    `json:"profile"`
	ServerURL string    `json:"serverUrl,omitempty"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	SavedAt   time.Time `json:"savedAt"`
}

// CredentialStatus is the password-free view of a stored profile
type CredentialStatus struct {
	Profile   string    `json:"profile"`
	Stored    bool      `json:"stored"`
	ServerURL string    `json:"serverUrl,omitempty"`
	Username  string    `json:"username,omitempty"`
	SavedAt   time.Time `json:"savedAt,omitempty"`
	Backend   string    `json:"backend"`
}

func (s CredentialStatus) AsTableRenderer() TableRenderer {
	return credentialTable{s}
}

type credentialTable struct{ s CredentialStatus }

func (t credentialTable) Headers() []string {
	return []string{"Profile", "Stored", "Username", "Server", "Backend"}
}

func (t credentialTable) Rows() [][]string {
	return [][]string{{
		t.s.Profile,
		strconv.FormatBool(t.s.Stored),
		t.s.Username,
		t.s.ServerURL,
		t.s.Backend,
	}}
}

func (t credentialTable) EmptyMessage() string { return "No credentials stored" }

// ProfileList is the set of profiles with stored credentials
type ProfileList struct {
	Profiles []string `json:"profiles"`
	Backend  string   `json:"backend"`
}

func (l ProfileList) AsTableRenderer() TableRenderer {
	return profileTable{l}
}

type profileTable struct{ l ProfileList }

func (t profileTable) Headers() []string { return []string{"Profile", "Backend"} }

func (t profileTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.l.Profiles))
	for _, p := range t.l.Profiles {
		rows = append(rows, []string{p, t.l.Backend})
	}
	return rows
}

func (t profileTable) EmptyMessage() string { return "No profiles stored" }

// PingResult reports whether the import service answered at all
type PingResult struct {
	ServerURL  string `json:"serverUrl"`
	Reachable  bool   `json:"reachable"`
	HTTPStatus int    `json:"httpStatus"`
	LatencyMs  int64  `json:"latencyMs"`
}

func (r PingResult) AsTableRenderer() TableRenderer {
	return pingTable{r}
}

type pingTable struct{ r PingResult }

func (t pingTable) Headers() []string {
	return []string{"Server", "Reachable", "Status", "Latency"}
}

func (t pingTable) Rows() [][]string {
	return [][]string{{
		t.r.ServerURL,
		strconv.FormatBool(t.r.Reachable),
		strconv.Itoa(t.r.HTTPStatus),
		strconv.FormatInt(t.r.LatencyMs, 10) + "ms",
	}}
}

func (t pingTable) EmptyMessage() string { return "No response" }
