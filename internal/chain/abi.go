package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// AuctionABI is the subset of the sealed-bid auction interface the bot uses.
const AuctionABI = `[
  {"type":"function","name":"bid","stateMutability":"nonpayable",
   "inputs":[{"name":"encryptedValue","type":"bytes32"},{"name":"inputProof","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"auctionEnd","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"ended","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"beneficiary","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"auctionEndTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"BidPlaced","anonymous":false,
   "inputs":[{"name":"bidder","type":"address","indexed":true}]},
  {"type":"event","name":"AuctionEnded","anonymous":false,
   "inputs":[{"name":"winner","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const (
	methodBid            = "bid"
	methodEnded          = "ended"
	methodBeneficiary    = "beneficiary"
	methodAuctionEndTime = "auctionEndTime"
)

var parsedABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(AuctionABI))
})
