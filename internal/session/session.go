package session

// Field names the five persisted credential fields.
type Field string

const (
	FieldDeviceID     Field = "DeviceId"
	FieldAccessToken  Field = "AccessToken"
	FieldRefreshToken Field = "RefreshToken"
	FieldUserID       Field = "UserId"
	FieldUserKey      Field = "UserKey"
)

// Store abstracts persistence of the credential fields. Get returns ""
// for an absent field; Set with an empty value removes the field.
// Implementations own the on-disk format.
type Store interface {
	Get(Field) string
	Set(Field, string)
	Persist() error
}

// State is the invariant-guarded view over a Store. All mutation of
// credential fields goes through it so the co-field rules hold for every
// observer.
type State struct {
	store Store
}

// New wraps a Store in the guarded view.
func New(store Store) *State {
	return &State{store: store}
}

func (s *State) has(f Field) bool {
	return s.store.Get(f) != ""
}

// DeviceID is unguarded: a device identity is meaningful on its own.
func (s *State) DeviceID() string {
	return s.store.Get(FieldDeviceID)
}

// AccessToken is observable only alongside the device id and refresh
// token it was issued against.
func (s *State) AccessToken() string {
	if !s.has(FieldDeviceID) || !s.has(FieldRefreshToken) {
		return ""
	}
	return s.store.Get(FieldAccessToken)
}

// RefreshToken is observable only alongside the access token and device id.
func (s *State) RefreshToken() string {
	if !s.has(FieldAccessToken) || !s.has(FieldDeviceID) {
		return ""
	}
	return s.store.Get(FieldRefreshToken)
}

// UserKey requires the full auth triple plus the user id.
func (s *State) UserKey() string {
	if !s.has(FieldAccessToken) || !s.has(FieldDeviceID) || !s.has(FieldRefreshToken) || !s.has(FieldUserID) {
		return ""
	}
	return s.store.Get(FieldUserKey)
}

// UserID requires the full auth triple plus the user key.
func (s *State) UserID() string {
	if !s.has(FieldAccessToken) || !s.has(FieldDeviceID) || !s.has(FieldRefreshToken) || !s.has(FieldUserKey) {
		return ""
	}
	return s.store.Get(FieldUserID)
}

// SetDeviceID installs a new device identity. The whole session hangs off
// the device id, so everything else is cleared.
func (s *State) SetDeviceID(id string) {
	s.store.Set(FieldDeviceID, id)
	s.store.Set(FieldAccessToken, "")
	s.store.Set(FieldRefreshToken, "")
	s.store.Set(FieldUserKey, "")
	s.store.Set(FieldUserID, "")
}

// SetUserKey installs a new user key. The user id must be re-confirmed
// afterwards, so it is cleared.
func (s *State) SetUserKey(key string) {
	s.store.Set(FieldUserKey, key)
	s.store.Set(FieldUserID, "")
}

// SetUserID records the confirmed user id.
func (s *State) SetUserID(id string) {
	s.store.Set(FieldUserID, id)
}

// RefreshTokens replaces the token pair without touching the user
// identity. A missing half leaves the state unchanged.
func (s *State) RefreshTokens(access, refresh string) {
	if access == "" || refresh == "" {
		return
	}
	s.store.Set(FieldAccessToken, access)
	s.store.Set(FieldRefreshToken, refresh)
}

// SetTokens replaces the token pair for a fresh device-level session,
// which also invalidates the user identity. A missing half leaves the
// state unchanged.
func (s *State) SetTokens(access, refresh string) {
	if access == "" || refresh == "" {
		return
	}
	s.store.Set(FieldAccessToken, access)
	s.store.Set(FieldRefreshToken, refresh)
	s.store.Set(FieldUserKey, "")
	s.store.Set(FieldUserID, "")
}

// ClearTokens drops the token pair, forcing re-authentication.
func (s *State) ClearTokens() {
	s.store.Set(FieldAccessToken, "")
	s.store.Set(FieldRefreshToken, "")
}

// IsAuthSet reports whether the device-level auth triple is complete.
func (s *State) IsAuthSet() bool {
	return s.has(FieldAccessToken) && s.has(FieldDeviceID) && s.has(FieldRefreshToken)
}

// IsLoggedIn reports whether the session is fully bound to a user.
func (s *State) IsLoggedIn() bool {
	return s.IsAuthSet() && s.has(FieldUserKey) && s.has(FieldUserID)
}

// Save persists the raw fields through the Store. Failures surface to the
// caller.
func (s *State) Save() error {
	return s.store.Persist()
}
