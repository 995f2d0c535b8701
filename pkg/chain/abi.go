package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LootBoxABI covers the contract surface the service uses: ERC-721
// enumeration, openLootBox and the RewardClaimed event.
const LootBoxABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"openLootBox","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[]},
  {"type":"event","name":"RewardClaimed","anonymous":false,
   "inputs":[
     {"name":"user","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true},
     {"name":"amount","type":"uint256","indexed":false}]}
]`

// OpenMethod is the contract method that opens an item.
const OpenMethod = "openLootBox"

// ParseABI parses LootBoxABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(LootBoxABI))
}
