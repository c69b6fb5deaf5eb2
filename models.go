package authclient

// UserProfile is the denormalized cache of the token claims plus
// server-fetched display fields. It is owned by the state machine, rebuilt
// whenever the token changes, and discarded on logout.
type UserProfile struct {
	Username       string     `json:"username,omitempty"`
	Email          string     `json:"email,omitempty"`
	Roles          []UserRole `json:"roles,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
}

// ProfileFromClaims builds the claim-derived portion of a profile.
func ProfileFromClaims(claims AuthClaims) *UserProfile {
	if claims == nil {
		return nil
	}
	roles := append([]UserRole(nil), claims.Roles()...)
	return &UserProfile{
		Username: claims.Subject(),
		Email:    claims.Email(),
		Roles:    roles,
	}
}

// Merge overlays server-provided fields onto the claim-derived profile.
// Server data wins on conflicting fields; claim data fills the gaps.
func (p *UserProfile) Merge(server *UserProfile) *UserProfile {
	if p == nil {
		return server
	}
	if server == nil {
		return p
	}

	merged := *p
	if server.Username != "" {
		merged.Username = server.Username
	}
	if server.Email != "" {
		merged.Email = server.Email
	}
	if len(server.Roles) > 0 {
		merged.Roles = append([]UserRole(nil), server.Roles...)
	}
	if server.FirstName != "" {
		merged.FirstName = server.FirstName
	}
	if server.LastName != "" {
		merged.LastName = server.LastName
	}
	if server.ProfilePicture != "" {
		merged.ProfilePicture = server.ProfilePicture
	}
	return &merged
}
