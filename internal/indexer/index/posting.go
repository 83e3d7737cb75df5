package index

// Posting records how often one term occurs in one document. Doc is the
// document ordinal within the owning Snapshot.
type Posting struct {
	Doc  uint32
	Freq uint32
}

// PostingList is ordered by ascending Doc with no repeated Doc.
type PostingList []Posting

// DocFreq is the number of documents in the list.
func (l PostingList) DocFreq() int {
	return len(l)
}

// Sorted reports whether the list is strictly ascending by Doc.
func (l PostingList) Sorted() bool {
	for i := 1; i < len(l); i++ {
		if l[i].Doc <= l[i-1].Doc {
			return false
		}
	}
	return true
}
