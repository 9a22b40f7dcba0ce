package main

import "strings"

// parseOwnerName извлекает имя владельца пода из hostname:
//
//	Deployment:  <name>-<rs-hash>-<pod-hash> → <name>
//	StatefulSet: <name>-<ordinal>            → <name>
//
// Остальные имена возвращаются без изменений.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")
	n := len(parts)

	// Deployment: хэш ReplicaSet (6-10 символов) и суффикс пода (5 символов)
	if n >= 3 && isPodSuffix(parts[n-1]) && isReplicaSetHash(parts[n-2]) {
		return strings.Join(parts[:n-2], "-")
	}

	// StatefulSet: числовой ordinal
	if n >= 2 && isDigits(parts[n-1]) {
		return strings.Join(parts[:n-1], "-")
	}

	return hostname
}

// isPodSuffix — 5 символов алфавита суффиксов Kubernetes.
func isPodSuffix(s string) bool {
	return len(s) == 5 && isAlnumLower(s)
}

// isReplicaSetHash — хэш шаблона пода: 6-10 символов, есть хотя бы одна цифра.
func isReplicaSetHash(s string) bool {
	if len(s) < 6 || len(s) > 10 || !isAlnumLower(s) {
		return false
	}
	return strings.ContainsAny(s, "0123456789")
}

func isAlnumLower(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
