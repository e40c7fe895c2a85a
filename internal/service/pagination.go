package service

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPageSize(size int) int {
	if size < 1 || size > 200 {
		return 50
	}
	return size
}
