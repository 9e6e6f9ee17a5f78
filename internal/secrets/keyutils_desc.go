package secrets

import (
	"strings"
)

const keyutilsPrefix = "credstore:"

// keyutilsDescription is the key description used when no target is given
func keyutilsDescription(service, user string) string {
	return keyutilsPrefix + user + "@" + service
}

// parseKeyutilsDescription splits a default description back into its
// parts. The user may itself contain '@', so the last one separates them.
func parseKeyutilsDescription(desc string) (service, user string, ok bool) {
	rest, found := strings.CutPrefix(desc, keyutilsPrefix)
	if !found {
		return "", "", false
	}
	at := strings.LastIndex(rest, "@")
	if at <= 0 || at == len(rest)-1 {
		return "", "", false
	}
	return rest[at+1:], rest[:at], true
}

// parseKeyDescribe parses KEYCTL_DESCRIBE output, "type;uid;gid;perm;description"
func parseKeyDescribe(s string) (keyType, desc string, ok bool) {
	fields := strings.SplitN(s, ";", 5)
	if len(fields) != 5 {
		return "", "", false
	}
	return fields[0], fields[4], true
}

// matchKeyutilsKey decides whether a user key with description desc belongs
// to service. With a target only that exact description matches, and the
// account is recovered when the target follows the default layout.
func matchKeyutilsKey(desc, service string, target *string) (account string, ok bool) {
	if target != nil {
		if desc != *target {
			return "", false
		}
		if svc, user, parsed := parseKeyutilsDescription(desc); parsed && svc == service {
			return user, true
		}
		return "", true
	}
	svc, user, parsed := parseKeyutilsDescription(desc)
	if !parsed || svc != service {
		return "", false
	}
	return user, true
}
