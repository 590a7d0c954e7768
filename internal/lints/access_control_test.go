package lints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMissingAccessControl(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		members  string
		expected int
	}{
		{
			name: "initialize without check",
			members: `    public entry fun initialize(account: &signer) {
        move_to(account, Config { admin: @0x1, fee: 0 });
    }`,
			expected: 1,
		},
		{
			name: "direct signer assertion",
			members: `    public entry fun initialize(account: &signer) {
        assert!(signer::address_of(account) == @admin, 1);
        move_to(account, Config { admin: @0x1, fee: 0 });
    }`,
			expected: 0,
		},
		{
			name: "assertion through a local",
			members: `    public entry fun set_fee(account: &signer, fee: u64) acquires Config {
        let sender = signer::address_of(account);
        let config = borrow_global_mut<Config>(@0x1);
        assert!(sender == config.admin, 1);
        config.fee = fee;
    }`,
			expected: 0,
		},
		{
			name: "abort guard",
			members: `    public entry fun pause(account: &signer) {
        if (signer::address_of(account) != @admin) abort 1;
    }`,
			expected: 0,
		},
		{
			name: "same module helper",
			members: `    fun check_owner(account: &signer) {
        assert!(signer::address_of(account) == @admin, 1);
    }

    public entry fun mint(account: &signer, amount: u64) {
        check_owner(account);
    }`,
			expected: 0,
		},
		{
			name: "authority helper",
			members: `    public entry fun burn(account: &signer) {
        acl::assert_admin(account);
    }`,
			expected: 0,
		},
		{
			name: "local assert helper without identity",
			members: `    fun assert_positive(x: u64) {
        assert!(x > 0, 1);
    }

    public fun set_fee(account: &signer, fee: u64) acquires Config {
        assert_positive(fee);
        borrow_global_mut<Config>(@0x1).fee = fee;
    }`,
			expected: 1,
		},
		{
			name: "local only helper with identity",
			members: `    fun only_admin(account: &signer) {
        assert!(signer::address_of(account) == @admin, 1);
    }

    public fun set_fee(account: &signer, fee: u64) acquires Config {
        only_admin(account);
        borrow_global_mut<Config>(@0x1).fee = fee;
    }`,
			expected: 0,
		},
		{
			name: "capability parameter",
			members: `    public fun mint(_cap: &MintCap, amount: u64): u64 {
        amount
    }`,
			expected: 0,
		},
		{
			name: "privileged field write",
			members: `    public entry fun change(new_admin: address) acquires Config {
        let config = borrow_global_mut<Config>(@0x1);
        config.admin = new_admin;
    }`,
			expected: 1,
		},
		{
			name: "comparison without identity",
			members: `    public entry fun set_fee(fee: u64) acquires Config {
        assert!(fee < 100, 1);
        borrow_global_mut<Config>(@0x1).fee = fee;
    }`,
			expected: 1,
		},
		{
			name: "private function",
			members: `    fun initialize(account: &signer) {
        move_to(account, Config { admin: @0x1, fee: 0 });
    }`,
			expected: 0,
		},
		{
			name: "test function",
			members: `    #[test]
    public fun initialize_for_test() {}`,
			expected: 0,
		},
		{
			name:     "not privileged",
			members:  `    public fun balance_of(addr: address): u64 { 0 }`,
			expected: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := "module 0x1::token {\n    use std::signer;\n    struct Config has key { admin: address, fee: u64 }\n\n" + tt.members + "\n}\n"
			assert.Len(t, run(t, DetectMissingAccessControl, src), tt.expected)
		})
	}
}

func TestDetectMissingAccessControl_Issue(t *testing.T) {
	t.Parallel()
	src := `module 0x1::token {
    public entry fun initialize(account: &signer) {
        let _ = account;
    }
}
`
	issues := run(t, DetectMissingAccessControl, src)
	require.Len(t, issues, 1)
	assert.Equal(t, "public entry fun initialize(account: &signer)", issues[0].CodeSnippet)
	assert.Equal(t, 2, issues[0].Location.Start.Line)
	assert.Equal(t, 5, issues[0].Location.Start.Column)
}

func TestDetectMissingAccessControl_ConfiguredNames(t *testing.T) {
	t.Parallel()
	src := `module 0x1::vault {
    public entry fun sweep(to: address) {}
}
`
	pass := newPass(t, src)
	issues, err := DetectMissingAccessControl(pass)
	require.NoError(t, err)
	assert.Empty(t, issues)

	pass.Options.PrivilegedNames = []string{"sweep"}
	issues, err = DetectMissingAccessControl(pass)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}
