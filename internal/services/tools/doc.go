// Package tools builds runner invocations for the external programs the
// pipeline drives and parses the text artifacts they leave behind.
//
// Every builder takes structured arguments and returns an argument vector;
// nothing here is ever passed through a shell.
package tools
