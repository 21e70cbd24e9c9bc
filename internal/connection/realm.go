package connection

import (
	"fmt"
	"strings"

	"github.com/domocarroll/dannicraft/internal/bridge"
)

// PickRealm returns the first realm whose name contains query, ignoring case.
func PickRealm(realms []bridge.Realm, query string) (bridge.Realm, error) {
	want := strings.ToLower(query)
	for _, r := range realms {
		if strings.Contains(strings.ToLower(r.Name), want) {
			return r, nil
		}
	}
	return bridge.Realm{}, fmt.Errorf("%w: no realm name contains %q", ErrRealmNotFound, query)
}

// realmPicker wraps PickRealm with the log lines shown during Realm selection.
func (m *manager) realmPicker(query string) bridge.RealmPicker {
	return func(realms []bridge.Realm) (bridge.Realm, error) {
		m.log(LevelInfo, fmt.Sprintf("Found %d Realm(s) on your account:", len(realms)))
		names := make([]string, len(realms))
		for i, r := range realms {
			names[i] = r.Name
			m.log(LevelInfo, fmt.Sprintf("  %d. %s", i+1, r.Name))
		}

		realm, err := PickRealm(realms, query)
		if err != nil {
			m.log(LevelError, fmt.Sprintf("No Realm found matching %q", query))
			m.log(LevelInfo, "Available Realms: "+strings.Join(names, ", "))
			return bridge.Realm{}, err
		}

		m.log(LevelInfo, "Connecting to Realm: "+realm.Name)
		return realm, nil
	}
}
