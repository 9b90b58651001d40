// Package musicmarket provides a reusable library for an NFT music marketplace
// with pluggable content stores and marketplace ledgers.
//
// A track is published as one immutable batch holding the audio file and a
// metadata.json document. The batch is addressed by a CID, and the metadata
// gateway URL becomes the token URI recorded by the Marketplace. Listings are
// read back from the Marketplace and resolved into TokenView values by
// fetching each token's metadata through the gateway.
//
// App ties the pieces together for one connected account. Session derives an
// App for another account that shares the stores, ledger and events of its
// parent. Content stores (memory, filesystem, S3, MinIO, remote upload API),
// ledgers (memory, Postgres) and metadata caches (memory, Redis) are provided
// under subpackages.
//
// Prices
//
// Prices are entered and displayed as ether decimals and handled as wei in a
// *big.Int everywhere else. Creating and reselling a token costs the royalty
// fee reported by the Marketplace.
package musicmarket
