package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The subset of the BDA25 token ABI this service reads, writes and watches.
const tokenABI = `[
  {"type":"function","name":"getAddressInfo","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[
     {"name":"dailyTransferred","type":"uint256"},
     {"name":"dailyMinted","type":"uint256"},
     {"name":"transferLimit","type":"uint256"},
     {"name":"isVerified","type":"bool"},
     {"name":"isBlocked","type":"bool"},
     {"name":"isIdentityProvider","type":"bool"},
     {"name":"isMintingAdmin","type":"bool"},
     {"name":"isRestrictionAdmin","type":"bool"},
     {"name":"isIdpAdmin","type":"bool"}]},
  {"type":"function","name":"verifiedAddresses","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"expirationTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"maxDailyMint","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"mintingAdminCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"restrAdminCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"idpAdminCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},

  {"type":"function","name":"mint","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"transferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"blockAddress","stateMutability":"nonpayable",
   "inputs":[{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"unblockAddress","stateMutability":"nonpayable",
   "inputs":[{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"addVerifiedAddress","stateMutability":"nonpayable",
   "inputs":[{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"removeVerifiedAddress","stateMutability":"nonpayable",
   "inputs":[{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"setDailyTransferLimit","stateMutability":"nonpayable",
   "inputs":[{"name":"account","type":"address"},{"name":"limit","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"addIdentityProvider","stateMutability":"nonpayable",
   "inputs":[{"name":"idp","type":"address"}],"outputs":[]},
  {"type":"function","name":"removeIdentityProvider","stateMutability":"nonpayable",
   "inputs":[{"name":"idp","type":"address"}],"outputs":[]},
  {"type":"function","name":"voteMintingAdmin","stateMutability":"nonpayable",
   "inputs":[{"name":"candidate","type":"address"}],"outputs":[]},
  {"type":"function","name":"voteRestrAdmin","stateMutability":"nonpayable",
   "inputs":[{"name":"candidate","type":"address"}],"outputs":[]},
  {"type":"function","name":"voteIDPAdmin","stateMutability":"nonpayable",
   "inputs":[{"name":"candidate","type":"address"}],"outputs":[]},
  {"type":"function","name":"verificationData","stateMutability":"nonpayable",
   "inputs":[{"name":"timestamp","type":"uint256"},{"name":"signature","type":"bytes"}],"outputs":[]},

  {"type":"event","name":"TransferLimitSet","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true},{"name":"limit","type":"uint256","indexed":false}]},
  {"type":"event","name":"AddressVerified","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true},{"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"VerificationRemoved","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true}]},
  {"type":"event","name":"AddressBlocked","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true}]},
  {"type":"event","name":"AddressUnblocked","anonymous":false,
   "inputs":[{"name":"user","type":"address","indexed":true}]},
  {"type":"event","name":"AdminStatusChanged","anonymous":false,
   "inputs":[{"name":"admin","type":"address","indexed":true},{"name":"adminType","type":"uint8","indexed":false},{"name":"status","type":"bool","indexed":false}]},
  {"type":"event","name":"IdentityProviderAdded","anonymous":false,
   "inputs":[{"name":"idp","type":"address","indexed":true}]},
  {"type":"event","name":"IdentityProviderRemoved","anonymous":false,
   "inputs":[{"name":"idp","type":"address","indexed":true}]},
  {"type":"event","name":"TokensMinted","anonymous":false,
   "inputs":[{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"TokensTransferred","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

// ParseABI returns the parsed token ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(tokenABI))
}
