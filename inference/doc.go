// Package inference classifies plant images and soil samples through remote
// model servers.
//
// Both classifiers speak the TensorFlow Serving REST predict protocol: a POST
// of {"instances": [...]} answered by {"predictions": [...]}. Images are
// decoded, converted to RGB and resized locally before they are sent; that
// work runs inside a bulkhead so a burst of uploads cannot starve the server.
//
// Missing endpoints do not fail startup. [New] returns unconfigured
// classifiers that reject every call with a configuration fault.
package inference
