// Package classifier trains and serves the binary congestion classifier.
//
// Two tree ensembles are evaluated with stratified cross-validation: a bagged
// random forest and a gradient boosted ensemble with log-loss. The better one
// is refit on the training split and wrapped, together with its scaler and
// feature encoder, in an immutable TrainedModel.
package classifier
