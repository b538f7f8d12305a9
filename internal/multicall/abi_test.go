package multicall

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPairABISyncTopic(t *testing.T) {
	pABI, err := PairABI()
	if err != nil {
		t.Fatalf("parse pair abi: %v", err)
	}
	event, ok := pABI.Events["Sync"]
	if !ok {
		t.Fatalf("Sync event missing")
	}
	want := common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")
	if event.ID != want {
		t.Fatalf("Sync topic mismatch: %s", event.ID.Hex())
	}
}

func TestMulticall3ABIHasAggregate3(t *testing.T) {
	mcABI, err := Multicall3ABI()
	if err != nil {
		t.Fatalf("parse multicall abi: %v", err)
	}
	method, ok := mcABI.Methods["aggregate3"]
	if !ok {
		t.Fatalf("aggregate3 missing")
	}
	if method.Sig != "aggregate3((address,bool,bytes)[])" {
		t.Fatalf("unexpected signature: %s", method.Sig)
	}
}
