package messaging

import "github.com/keep-starknet-strange/zaun/contract"

const Name = "StarknetMessaging"

// ABI is the StarknetMessaging facet of the Starknet core contract.
const ABI = `[
	{"type":"function","name":"sendMessageToL2","stateMutability":"payable",
	 "inputs":[{"name":"toAddress","type":"uint256"},{"name":"selector","type":"uint256"},{"name":"payload","type":"uint256[]"}],
	 "outputs":[{"name":"","type":"bytes32"},{"name":"","type":"uint256"}]},
	{"type":"function","name":"consumeMessageFromL2","stateMutability":"nonpayable",
	 "inputs":[{"name":"fromAddress","type":"uint256"},{"name":"payload","type":"uint256[]"}],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"startL1ToL2MessageCancellation","stateMutability":"nonpayable",
	 "inputs":[{"name":"toAddress","type":"uint256"},{"name":"selector","type":"uint256"},{"name":"payload","type":"uint256[]"},{"name":"nonce","type":"uint256"}],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"cancelL1ToL2Message","stateMutability":"nonpayable",
	 "inputs":[{"name":"toAddress","type":"uint256"},{"name":"selector","type":"uint256"},{"name":"payload","type":"uint256[]"},{"name":"nonce","type":"uint256"}],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"l1ToL2Messages","stateMutability":"view",
	 "inputs":[{"name":"msgHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"l2ToL1Messages","stateMutability":"view",
	 "inputs":[{"name":"msgHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"l1ToL2MessageCancellations","stateMutability":"view",
	 "inputs":[{"name":"msgHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"messageCancellationDelay","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"l1ToL2MessageNonce","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getMaxL1MsgFee","stateMutability":"pure",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"LogMessageToL1","anonymous":false,"inputs":[
		{"name":"fromAddress","type":"uint256","indexed":true},
		{"name":"toAddress","type":"address","indexed":true},
		{"name":"payload","type":"uint256[]","indexed":false}]},
	{"type":"event","name":"LogMessageToL2","anonymous":false,"inputs":[
		{"name":"fromAddress","type":"address","indexed":true},
		{"name":"toAddress","type":"uint256","indexed":true},
		{"name":"selector","type":"uint256","indexed":true},
		{"name":"payload","type":"uint256[]","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false},
		{"name":"fee","type":"uint256","indexed":false}]},
	{"type":"event","name":"ConsumedMessageToL1","anonymous":false,"inputs":[
		{"name":"fromAddress","type":"uint256","indexed":true},
		{"name":"toAddress","type":"address","indexed":true},
		{"name":"payload","type":"uint256[]","indexed":false}]},
	{"type":"event","name":"ConsumedMessageToL2","anonymous":false,"inputs":[
		{"name":"fromAddress","type":"address","indexed":true},
		{"name":"toAddress","type":"uint256","indexed":true},
		{"name":"selector","type":"uint256","indexed":true},
		{"name":"payload","type":"uint256[]","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"event","name":"MessageToL2CancellationStarted","anonymous":false,"inputs":[
		{"name":"fromAddress","type":"address","indexed":true},
		{"name":"toAddress","type":"uint256","indexed":true},
		{"name":"selector","type":"uint256","indexed":true},
		{"name":"payload","type":"uint256[]","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"event","name":"MessageToL2Canceled","anonymous":false,"inputs":[
		{"name":"fromAddress","type":"address","indexed":true},
		{"name":"toAddress","type":"uint256","indexed":true},
		{"name":"selector","type":"uint256","indexed":true},
		{"name":"payload","type":"uint256[]","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]}
]`

var parsedABI = contract.MustParseABI(ABI)
