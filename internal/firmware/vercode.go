// Package firmware holds the small vendor conventions shared by the FUS
// client and the key derivation: version codes and the logic check.
package firmware

import "strings"

// NormalizeVersion brings a PDA/CSC/MODEM[/DATA] version code into the
// four part form the servers expect. A missing 4th part is copied from the
// 1st, and so is an empty 3rd part. Codes with fewer than three parts are
// returned unchanged.
func NormalizeVersion(vercode string) string {
	ver := strings.Split(vercode, "/")
	if len(ver) < 3 {
		return vercode
	}
	if len(ver) == 3 {
		ver = append(ver, ver[0])
	}
	if ver[2] == "" {
		ver[2] = ver[0]
	}
	return strings.Join(ver, "/")
}
