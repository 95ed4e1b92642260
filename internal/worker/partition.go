package worker

// Partition splits n catalog entries into w contiguous slices of ceil(n/w).
// Slice k covers [k*size, min((k+1)*size, n)); trailing slices may be empty.
func Partition(n, w int) [][2]int {
	if w < 1 {
		return nil
	}
	size := (n + w - 1) / w
	out := make([][2]int, w)
	for k := range out {
		lo := min(k*size, n)
		hi := min((k+1)*size, n)
		out[k] = [2]int{lo, hi}
	}
	return out
}
