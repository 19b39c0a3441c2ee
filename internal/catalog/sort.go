package catalog

// greater reports whether a must move behind b when ordering by key.
func greater(key SortKey, a, b *Book) bool {
	switch key {
	case SortByYear:
		return a.Year > b.Year
	case SortByAuthor:
		return compareFold(a.Author, b.Author) > 0
	case SortByTitle:
		return compareFold(a.Title, b.Title) > 0
	}
	return false
}

// bubbleSort reorders books in place and returns the number of swaps.
// Adjacent entries swap only on a strict greater-than, so equal keys keep
// their relative order.
func bubbleSort(books []*Book, key SortKey) int {
	swaps := 0
	for end := len(books) - 1; end > 0; end-- {
		swapped := false
		for i := 0; i < end; i++ {
			if greater(key, books[i], books[i+1]) {
				books[i], books[i+1] = books[i+1], books[i]
				swapped = true
				swaps++
			}
		}
		if !swapped {
			break
		}
	}
	return swaps
}
