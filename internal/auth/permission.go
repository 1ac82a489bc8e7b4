package auth

// PermissionsClaim is the claim carrying granted permission strings.
const PermissionsClaim = "permissions"

// Permissions returns the permission strings of the claim set. ok is false
// when the claim is absent or is not a list of strings.
func (c Claims) Permissions() (perms []string, ok bool) {
	switch v := c[PermissionsClaim].(type) {
	case []string:
		return v, true
	case []any:
		perms = make([]string, 0, len(v))
		for _, p := range v {
			s, isStr := p.(string)
			if !isStr {
				return nil, false
			}
			perms = append(perms, s)
		}
		return perms, true
	default:
		return nil, false
	}
}

// CheckPermission reports whether claims grant permission. The presence of
// the permissions claim is checked before membership.
func CheckPermission(permission string, claims Claims) error {
	perms, ok := claims.Permissions()
	if !ok {
		return ErrPermissionsClaimMissing
	}
	for _, p := range perms {
		if p == permission {
			return nil
		}
	}
	return ErrUnauthorized
}
