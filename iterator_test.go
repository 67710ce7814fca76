package mgo

import "testing"

func TestNumberToReturnZeroLimitRequestsBatch(t *testing.T) {
	it := &Iter{limit: 0, batchSize: 50}
	if got := it.numberToReturn(); got != 50 {
		t.Fatalf("numberToReturn = %d, want 50", got)
	}
}

func TestNumberToReturnNegativeLimitIsHardCap(t *testing.T) {
	it := &Iter{limit: -5}
	if got := it.numberToReturn(); got != -5 {
		t.Fatalf("numberToReturn = %d, want -5", got)
	}
}

func TestNumberToReturnClampedByBatchSize(t *testing.T) {
	it := &Iter{limit: 100, batchSize: 20, delivered: 10}
	if got := it.numberToReturn(); got != 20 {
		t.Fatalf("numberToReturn = %d, want 20", got)
	}
}

func TestNumberToReturnRemainingUnderBatchSize(t *testing.T) {
	it := &Iter{limit: 15, batchSize: 20, delivered: 10}
	if got := it.numberToReturn(); got != 5 {
		t.Fatalf("numberToReturn = %d, want 5", got)
	}
}

func TestNumberToReturnExhaustedLimitIsZero(t *testing.T) {
	it := &Iter{limit: 10, batchSize: 20, delivered: 10}
	if got := it.numberToReturn(); got != 0 {
		t.Fatalf("numberToReturn = %d, want 0", got)
	}
}
