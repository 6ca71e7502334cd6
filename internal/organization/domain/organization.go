package domain

// Org is an organization as listed by the organization service. Read-only on this side; only the
// server changes Balance.
type Org struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// UserOrgInfo is one per-organization role record in a GetMeResponse. Role is the raw wire value;
// only the isCurrent record is ever parsed, so unknown roles on other orgs are carried through.
type UserOrgInfo struct {
	OrgID     string `json:"orgId"`
	OrgName   string `json:"orgName"`
	Role      string `json:"role"`
	IsCurrent bool   `json:"isCurrent"`
}

// GetMeResponse is the raw "my organizations" payload for the session user.
type GetMeResponse struct {
	UserID string        `json:"userId"`
	Email  string        `json:"email"`
	Orgs   []UserOrgInfo `json:"orgs"`
}

// Current returns the record flagged isCurrent, or nil when none is.
func (r *GetMeResponse) Current() *UserOrgInfo {
	if r == nil {
		return nil
	}
	for i := range r.Orgs {
		if r.Orgs[i].IsCurrent {
			return &r.Orgs[i]
		}
	}
	return nil
}

// Contains reports whether id is among orgs.
func Contains(orgs []Org, id string) bool {
	for _, o := range orgs {
		if o.ID == id {
			return true
		}
	}
	return false
}
