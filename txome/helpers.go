package txome

import (
	"math"

	"github.com/homologus/txquant/logmath"
)

func mathLog(x float64) float64 { return math.Log(x) }

func logAdd(a, b float64) float64 { return logmath.LogAdd(a, b) }
