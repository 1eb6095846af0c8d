package worker

var Settle = settle
