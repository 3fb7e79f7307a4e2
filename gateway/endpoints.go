package gateway

// Endpoints holds the three base URLs of one venue environment. A gateway
// always swaps all three together.
type Endpoints struct {
	REST      string
	WebSocket string
	Stream    string
}

func LiveEndpoints() Endpoints {
	return Endpoints{
		REST:      "https://api.binance.com/api",
		WebSocket: "wss://stream.binance.com:9443/ws",
		Stream:    "wss://stream.binance.com:9443/stream",
	}
}

func TestEndpoints() Endpoints {
	return Endpoints{
		REST:      "https://testnet.binance.vision/api",
		WebSocket: "wss://testnet.binance.vision/ws",
		Stream:    "wss://testnet.binance.vision/stream",
	}
}

func EndpointsFor(live bool) Endpoints {
	if live {
		return LiveEndpoints()
	}
	return TestEndpoints()
}
