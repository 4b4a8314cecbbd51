package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingHistory(t *testing.T) {
	history := newRollingHistory()

	assert.Nil(t, history.Recent("cust_00001"), "unknown subject has no history")

	history.Observe("cust_00001", 70)
	assert.Equal(t, []int{70}, history.Recent("cust_00001"))

	history.Observe("cust_00001", 72)
	history.Observe("cust_00001", 74)
	assert.Equal(t, []int{70, 72, 74}, history.Recent("cust_00001"))
}

func TestRollingHistoryEvictsOldest(t *testing.T) {
	history := newRollingHistory()

	for rate := 1; rate <= 9; rate++ {
		history.Observe("cust_00001", rate)
	}

	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, history.Recent("cust_00001"))
}

func TestRollingHistoryIsolatesSubjects(t *testing.T) {
	history := newRollingHistory()

	history.Observe("cust_00001", 70)
	history.Observe("cust_00002", 120)

	assert.Equal(t, []int{70}, history.Recent("cust_00001"))
	assert.Equal(t, []int{120}, history.Recent("cust_00002"))
}

func TestRollingHistoryRecentReturnsACopy(t *testing.T) {
	history := newRollingHistory()
	history.Observe("cust_00001", 70)

	recent := history.Recent("cust_00001")
	recent[0] = 999

	assert.Equal(t, []int{70}, history.Recent("cust_00001"))
}
