package domain

// Zero overwrites key or plaintext material in place. Callers defer it right after
// obtaining a buffer so every return path clears it.
func Zero(b []byte) {
	clear(b)
}
