package plugin

// Package plugin provides JavaScript plugin support for derived operations.
//
// Plugins are JavaScript files loaded from a directory at startup.
// Each plugin must define:
//   - An @operation directive naming the operation the plugin resolves
//   - An execute(args, gateway) function
//
// Fetches made through the gateway object go through the optimizer, so they
// are multiplexed, batched and cached like any resolver call.
//
// Example plugin:
//
//	// @operation championPool
//	function execute(args, gateway) {
//	    var champions = gateway.fetch("champions", { lang: args.lang });
//	    var traits = gateway.fetch("traits", { lang: args.lang });
//	    return champions.map(function(champion) {
//	        champion.traits = traits.filter(function(trait) {
//	            return champion.traitIds.indexOf(trait.id) !== -1;
//	        });
//	        return champion;
//	    });
//	}
