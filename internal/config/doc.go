// Package config loads the duplex.json file of a duplex server.
//
// # Configuration File Structure
//
//	{
//	  "address": ":8080",
//	  "workers": 8,
//	  "maxConnections": 10000,
//	  "shutdownTimeout": "30s",
//	  "adminAddress": "127.0.0.1:9090",
//	  "log": {"level": "info", "format": "text"},
//	  "websocket": {
//	    "maxFrameSize": 1048576,
//	    "closeTimeout": "5s",
//	    "sessions": [
//	      {"name": "chat", "mode": "broadcast"},
//	      {"name": "echo"}
//	    ]
//	  },
//	  "static": {"dir": "public"},
//	  "s3": {"bucket": "assets", "prefix": "site/", "region": "eu-west-1"}
//	}
//
// Every field is optional. Missing fields take the defaults of New.
package config
