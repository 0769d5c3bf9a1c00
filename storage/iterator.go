package storage

type kvPair struct{ k, v []byte }

// sliceIterator iterates over pairs that were materialised up front.
type sliceIterator struct {
	pairs []kvPair
	idx   int
	err   error
}

func (it *sliceIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.idx++
	return it.idx < len(it.pairs)
}

func (it *sliceIterator) Key() []byte   { return it.pairs[it.idx].k }
func (it *sliceIterator) Value() []byte { return it.pairs[it.idx].v }
func (it *sliceIterator) Release()      {}
func (it *sliceIterator) Error() error  { return it.err }
