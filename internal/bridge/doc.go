// Package bridge implements the client side of the game protocol bridge.
//
// The bridge is a headless Minecraft client process that owns the game
// protocol (login, packets, world state, pathfinding) and exposes it over a
// single WebSocket using JSON text frames:
//
//	client -> bridge  {"id":"..","type":"command","action":"chat","params":{..}}
//	bridge -> client  {"id":"..","type":"response","success":true,"data":{..}}
//	bridge -> client  {"type":"event","event":"spawn","data":{..}}
//
// A Client is one bot handle. It is created per connection attempt, emits
// lifecycle events (login, spawn, chat, kicked, error, end, realms) on the
// channel returned by Events, and is never reused after it ends.
package bridge
