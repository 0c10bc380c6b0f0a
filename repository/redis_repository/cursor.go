package redis_repository

import "strconv"

func parseCursor(cursor string) (uint64, error) {
	return strconv.ParseUint(cursor, 10, 64)
}

func formatCursor(cursor uint64) string {
	return strconv.FormatUint(cursor, 10)
}
