package book

import (
	"testing"

	"github.com/uhyunpark/hyperclob/pkg/num"
)

func TestPrice_Crosses(t *testing.T) {
	tests := []struct {
		name          string
		levelPrice    uint64
		levelIsBid    bool
		incomingPrice uint64
		incomingIsBid bool
		want          bool
	}{
		{"resting ask crosses equal bid", 1500, false, 1500, true, true},
		{"resting ask crosses higher bid", 1500, false, 1600, true, true},
		{"resting ask does not cross lower bid", 1500, false, 1400, true, false},
		{"resting bid crosses equal ask", 1500, true, 1500, false, true},
		{"resting bid crosses lower ask", 1500, true, 1400, false, true},
		{"resting bid does not cross higher ask", 1500, true, 1600, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := NewPrice(num.FromUint64(tt.levelPrice), tt.levelIsBid)
			got := level.Crosses(num.FromUint64(tt.incomingPrice), tt.incomingIsBid)
			if got != tt.want {
				t.Errorf("Crosses() = %v, want %v", got, tt.want)
			}
		})
	}
}
